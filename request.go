package claude

import "fmt"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageRequest contains the parameters for one Messages API call.
type MessageRequest struct {
	// Messages contains the conversation history.
	// Each message has a Role (user/assistant) and Blocks.
	Messages []Message

	// Model is the model identifier (e.g., "claude-haiku-4-5-20251001")
	Model string

	// Params contains the optional request parameters (temperature, max_tokens, thinking, tools, etc.)
	Params *RequestParams
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is either "user" or "assistant"
	Role string

	// Blocks is the list of content blocks for this message
	Blocks []*Block
}

// UserText is shorthand for a user message holding one text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []*Block{NewTextBlock(text)}}
}

// Validate checks the request shape and its parameters.
// Model limits come from the capability registry when the model is known there.
func (r *MessageRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Value: r.Model, Reason: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Value: 0, Reason: "at least one message is required"}
	}
	for i, msg := range r.Messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Value: msg.Role, Reason: "role must be 'user' or 'assistant'"}
		}
		if len(msg.Blocks) == 0 {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].blocks", i), Value: 0, Reason: "message has no content"}
		}
	}
	if r.Messages[0].Role != RoleUser {
		return &ValidationError{Field: "messages[0].role", Value: r.Messages[0].Role, Reason: "conversation must start with a user message"}
	}

	if err := ValidateRequestParams(r.Params); err != nil {
		return err
	}

	return GetCapabilityRegistry().CheckRequest(r)
}
