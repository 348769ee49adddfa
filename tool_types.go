package claude

import "fmt"

// NewCustomTool creates a client-executed function tool.
func NewCustomTool(name, description string, schema *ToolSchema) (*Tool, error) {
	tool := &Tool{
		Type:        ToolTypeCustom,
		Name:        name,
		Description: description,
		InputSchema: schema,
	}

	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create tool %s: %w", name, err)
	}

	return tool, nil
}

// NewWebSearchTool creates the server-executed web search tool.
func NewWebSearchTool() *Tool {
	return &Tool{Type: ToolTypeWebSearch, Name: "web_search"}
}

// NewTextEditorTool creates the text editor tool.
// The model emits edit commands; the caller applies them.
func NewTextEditorTool() *Tool {
	return &Tool{Type: ToolTypeTextEditor, Name: "str_replace_based_edit_tool"}
}

// NewBashTool creates the bash tool. Commands run on the caller's side.
func NewBashTool() *Tool {
	return &Tool{Type: ToolTypeBash, Name: "bash"}
}

// MapToolByName creates a built-in tool from a user-friendly name.
//
// Supported names:
//   - "web_search", "search" → web search tool
//   - "text_editor", "file_edit" → text editor tool
//   - "bash", "code_exec" → bash tool
func MapToolByName(name string) (*Tool, error) {
	switch name {
	case "web_search", "search":
		return NewWebSearchTool(), nil
	case "text_editor", "file_edit":
		return NewTextEditorTool(), nil
	case "bash", "code_exec":
		return NewBashTool(), nil
	default:
		return nil, fmt.Errorf("unknown built-in tool: %s", name)
	}
}
