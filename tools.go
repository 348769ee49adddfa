package claude

import (
	"errors"
	"fmt"
)

// Tool type constants
const (
	ToolTypeCustom     = "custom"
	ToolTypeWebSearch  = "web_search"
	ToolTypeTextEditor = "text_editor"
	ToolTypeBash       = "bash"
)

// ExecutionSide indicates where tool execution happens
type ExecutionSide string

const (
	ExecutionSideServer ExecutionSide = "server" // API executes tool
	ExecutionSideClient ExecutionSide = "client" // Caller executes tool
)

// ToolChoiceMode controls tool selection behavior
type ToolChoiceMode string

const (
	ToolChoiceModeAuto     ToolChoiceMode = "auto"     // Model decides whether to use tools
	ToolChoiceModeRequired ToolChoiceMode = "required" // Model must use a tool
	ToolChoiceModeNone     ToolChoiceMode = "none"     // Model cannot use tools
	ToolChoiceModeSpecific ToolChoiceMode = "specific" // Model must use specific tool
)

// Tool declares something the model can call.
//
// Custom tools carry an InputSchema; built-in tools (web_search, bash,
// text_editor) are versioned API tools and ignore it.
type Tool struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *ToolSchema `json:"input_schema,omitempty"`
}

// Validate checks if the Tool is properly configured
func (t *Tool) Validate() error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}

	switch t.Type {
	case ToolTypeCustom:
		if err := t.InputSchema.CheckDefinition(); err != nil {
			return fmt.Errorf("tool %s: %w", t.Name, err)
		}
	case ToolTypeWebSearch, ToolTypeTextEditor, ToolTypeBash:
	case "":
		return errors.New("tool type is required")
	default:
		return fmt.Errorf("unsupported tool type: %s", t.Type)
	}

	return nil
}

// ExecutionSide reports who runs the tool. Only web search runs on the API side.
func (t *Tool) ExecutionSide() ExecutionSide {
	if t.Type == ToolTypeWebSearch {
		return ExecutionSideServer
	}
	return ExecutionSideClient
}

// ToolChoice specifies tool selection behavior
type ToolChoice struct {
	Mode     ToolChoiceMode // Selection mode
	ToolName *string        // Required when Mode is ToolChoiceModeSpecific
}

// Validate checks if the ToolChoice is properly configured
func (tc *ToolChoice) Validate() error {
	switch tc.Mode {
	case ToolChoiceModeAuto, ToolChoiceModeRequired, ToolChoiceModeNone:
	case ToolChoiceModeSpecific:
		if tc.ToolName == nil || *tc.ToolName == "" {
			return errors.New("tool_name is required when mode is 'specific'")
		}
	default:
		return fmt.Errorf("invalid tool choice mode: %s", tc.Mode)
	}

	return nil
}

// NewToolChoice creates a new ToolChoice with the specified mode
func NewToolChoice(mode ToolChoiceMode) (*ToolChoice, error) {
	tc := &ToolChoice{
		Mode: mode,
	}

	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool choice: %w", err)
	}

	return tc, nil
}

// NewSpecificToolChoice creates a ToolChoice for a specific tool
func NewSpecificToolChoice(toolName string) (*ToolChoice, error) {
	tc := &ToolChoice{
		Mode:     ToolChoiceModeSpecific,
		ToolName: &toolName,
	}

	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid specific tool choice: %w", err)
	}

	return tc, nil
}

// Tool error kinds.
const (
	ToolErrorUnknownTool  = "unknown_tool"
	ToolErrorInvalidInput = "invalid_input"
	ToolErrorExecution    = "execution_error"
)

// ToolError is the failure half of a tool handler result. It is reported back
// to the model as a tool_result with is_error set.
type ToolError struct {
	Kind    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewToolError is a convenience for handlers.
func NewToolError(format string, args ...any) *ToolError {
	return &ToolError{Kind: ToolErrorExecution, Message: fmt.Sprintf(format, args...)}
}
