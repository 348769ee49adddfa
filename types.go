package claude

import "encoding/json"

// Block type constants
const (
	BlockTypeText             = "text"
	BlockTypeThinking         = "thinking"          // Extended thinking
	BlockTypeRedactedThinking = "redacted_thinking" // Encrypted thinking, replayed verbatim
	BlockTypeToolUse          = "tool_use"
	BlockTypeToolResult       = "tool_result" // Result sent back for a client-executed tool call
)

// Block is one content block of a message.
//
// User blocks: text, tool_result
// Assistant blocks: text, thinking, redacted_thinking, tool_use
type Block struct {
	// BlockType indicates the type of block
	BlockType string `json:"block_type"`

	// Sequence indicates the position of this block in the message (0-indexed)
	Sequence int `json:"sequence"`

	// TextContent contains the text for text/thinking blocks and tool_result output
	TextContent *string `json:"text_content,omitempty"`

	// Signature verifies a thinking block; it must be sent back unchanged
	Signature string `json:"signature,omitempty"`

	// ToolUseID links a tool_use block to its tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`

	// ToolName is the tool the model called (tool_use only)
	ToolName string `json:"tool_name,omitempty"`

	// Input holds the tool arguments (tool_use only)
	Input Value `json:"input,omitzero"`

	// IsError marks a tool_result as a failed invocation
	IsError bool `json:"is_error,omitempty"`

	// ProviderData keeps raw API data for blocks that can't be normalized
	// (redacted thinking and unknown block types). It is replayed verbatim.
	ProviderData json.RawMessage `json:"provider_data,omitempty"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) *Block {
	return &Block{BlockType: BlockTypeText, TextContent: &text}
}

// NewToolUseBlock creates a tool_use block, as when replaying an assistant turn.
func NewToolUseBlock(id, name string, input Value) *Block {
	return &Block{BlockType: BlockTypeToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// NewToolResultBlock creates a tool_result block answering the tool_use with the given id.
func NewToolResultBlock(toolUseID, content string, isError bool) *Block {
	return &Block{BlockType: BlockTypeToolResult, ToolUseID: toolUseID, TextContent: &content, IsError: isError}
}

// Text returns the text content or an empty string.
func (b *Block) Text() string {
	if b.TextContent == nil {
		return ""
	}
	return *b.TextContent
}

// IsUserBlock returns true if this block can appear in a user turn
func (b *Block) IsUserBlock() bool {
	return b.BlockType == BlockTypeText ||
		b.BlockType == BlockTypeToolResult
}

// IsAssistantBlock returns true if this block can appear in an assistant turn
func (b *Block) IsAssistantBlock() bool {
	return b.BlockType == BlockTypeText ||
		b.BlockType == BlockTypeThinking ||
		b.BlockType == BlockTypeRedactedThinking ||
		b.BlockType == BlockTypeToolUse
}

// IsToolBlock returns true if this is a tool-related block
func (b *Block) IsToolBlock() bool {
	return b.BlockType == BlockTypeToolUse ||
		b.BlockType == BlockTypeToolResult
}

// IsToolUseBlock returns true if this is a tool_use block
func (b *Block) IsToolUseBlock() bool {
	return b.BlockType == BlockTypeToolUse
}

// IsToolResultBlock returns true if this is a tool_result block
func (b *Block) IsToolResultBlock() bool {
	return b.BlockType == BlockTypeToolResult
}

// HasProviderData returns true if this block has raw API data
func (b *Block) HasProviderData() bool {
	return len(b.ProviderData) > 0
}
