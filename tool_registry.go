package claude

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// ToolHandler runs one tool call. It is invoked synchronously, once per
// tool_use block, with input already validated against the tool's schema.
type ToolHandler func(ctx context.Context, name string, input Value) (Value, *ToolError)

// ToolDefinition pairs a tool declaration with its handler.
type ToolDefinition struct {
	Tool    Tool
	Handler ToolHandler // nil for server-executed tools
}

// ToolRegistry holds the tools offered to the model and dispatches calls to them.
type ToolRegistry struct {
	tools map[string]ToolDefinition
	mu    sync.RWMutex
}

var (
	globalToolRegistry     *ToolRegistry
	globalToolRegistryOnce sync.Once
)

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolDefinition)}
}

// GetToolRegistry returns the global tool registry (singleton)
func GetToolRegistry() *ToolRegistry {
	globalToolRegistryOnce.Do(func() {
		globalToolRegistry = NewToolRegistry()
	})
	return globalToolRegistry
}

// Register adds a tool and its handler. Client-executed tools need a handler.
func (r *ToolRegistry) Register(tool Tool, handler ToolHandler) error {
	if err := tool.Validate(); err != nil {
		return err
	}

	if handler == nil && tool.ExecutionSide() == ExecutionSideClient {
		return fmt.Errorf("handler is required for tool %s", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}

	r.tools[tool.Name] = ToolDefinition{Tool: tool, Handler: handler}
	return nil
}

// Unregister removes a tool definition from the registry
func (r *ToolRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s is not registered", name)
	}

	delete(r.tools, name)
	return nil
}

// Get retrieves a tool definition by name
func (r *ToolRegistry) Get(name string) (ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.tools[name]
	if !exists {
		return ToolDefinition{}, fmt.Errorf("unknown tool: %s", name)
	}

	return def, nil
}

// IsRegistered checks if a tool is registered
func (r *ToolRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// List returns all registered tool names, sorted
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns the declarations to put in RequestParams.Tools, sorted by name.
func (r *ToolRegistry) Tools() []Tool {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		if def, ok := r.tools[name]; ok {
			tools = append(tools, def.Tool)
		}
	}
	return tools
}

// Invoke validates input against the tool's schema and runs its handler.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, input Value) (Value, *ToolError) {
	def, err := r.Get(name)
	if err != nil {
		return Value{}, &ToolError{Kind: ToolErrorUnknownTool, Message: err.Error()}
	}
	if def.Handler == nil {
		return Value{}, &ToolError{Kind: ToolErrorUnknownTool, Message: fmt.Sprintf("tool %s is executed by the API", name)}
	}

	if err := def.Tool.InputSchema.Validate(input); err != nil {
		return Value{}, &ToolError{Kind: ToolErrorInvalidInput, Message: err.Error()}
	}

	return def.Handler(ctx, name, input)
}

// HandleToolUse answers a tool_use block with a tool_result block.
// Tool failures become is_error results so the model can react to them.
func (r *ToolRegistry) HandleToolUse(ctx context.Context, block *Block) *Block {
	out, toolErr := r.Invoke(ctx, block.ToolName, block.Input)
	if toolErr != nil {
		return NewToolResultBlock(block.ToolUseID, toolErr.Error(), true)
	}

	content := out.String()
	if s, ok := out.AsString(); ok {
		content = s
	}
	return NewToolResultBlock(block.ToolUseID, content, false)
}

// HandleResponse runs every client-side tool call in resp and returns the
// user message carrying the results, or false when there is nothing to answer.
func (r *ToolRegistry) HandleResponse(ctx context.Context, resp *Response) (Message, bool) {
	uses := resp.ToolUses()
	if len(uses) == 0 {
		return Message{}, false
	}

	blocks := make([]*Block, 0, len(uses))
	for i, use := range uses {
		result := r.HandleToolUse(ctx, use)
		result.Sequence = i
		blocks = append(blocks, result)
	}
	return Message{Role: RoleUser, Blocks: blocks}, true
}

// RegisterTool is a convenience function that registers a tool with the global registry
func RegisterTool(tool Tool, handler ToolHandler) error {
	return GetToolRegistry().Register(tool, handler)
}

// InvokeTool is a convenience function that invokes a tool from the global registry
func InvokeTool(ctx context.Context, name string, input Value) (Value, *ToolError) {
	return GetToolRegistry().Invoke(ctx, name, input)
}
