package claude

import "strings"

// Response is a complete model reply, either returned by a non-streaming
// call, carried in a batch result, or assembled from stream events.
type Response struct {
	// ID is the message id assigned by the API
	ID string

	// Blocks is the list of content blocks in the reply
	Blocks []*Block

	// Model is the model that was used (may differ from request if aliased)
	Model string

	// StopReason indicates why generation stopped
	StopReason StopReason

	// StopSequence is the custom stop sequence that matched, if any
	StopSequence string

	Usage Usage
}

// Text concatenates the text blocks of the reply.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.BlockType == BlockTypeText {
			sb.WriteString(b.Text())
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in order.
func (r *Response) ToolUses() []*Block {
	var out []*Block
	for _, b := range r.Blocks {
		if b.IsToolUseBlock() {
			out = append(out, b)
		}
	}
	return out
}

// AssistantMessage turns the reply into a message for the next turn of the conversation.
func (r *Response) AssistantMessage() Message {
	return Message{Role: RoleAssistant, Blocks: r.Blocks}
}
