package claude

import "fmt"

// Event type names as they appear on the wire.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
	EventPing              = "ping"
)

// StreamEvent is one step of a streamed response.
//
// The concrete type is one of MessageStart, ContentBlockStart,
// ContentBlockDelta, ContentBlockStop, MessageDelta, MessageStop or
// ErrorEvent. Consumers switch on the type:
//
//	for ev := range events {
//		switch e := ev.(type) {
//		case claude.ContentBlockDelta:
//			if d, ok := e.Delta.(claude.TextDelta); ok { fmt.Print(d.Text) }
//		case claude.ErrorEvent:
//			if e.Terminal() { return e }
//		}
//	}
//
// Per content block the order is Start, zero or more Delta, Stop.
// MessageStart comes first and MessageStop is always last.
type StreamEvent interface {
	EventType() string
	streamEvent()
}

// MessageStart opens the stream and carries the initial usage.
type MessageStart struct {
	MessageID string
	Model     string
	Usage     Usage
}

// ContentBlockStart opens the content block at Index.
// ToolUseID and ToolName are set for tool_use blocks only.
type ContentBlockStart struct {
	Index     int
	BlockType string
	ToolUseID string
	ToolName  string
}

// ContentBlockDelta carries incremental content for the block at Index.
type ContentBlockDelta struct {
	Index int
	Delta Delta
}

// ContentBlockStop closes the content block at Index.
type ContentBlockStop struct {
	Index int
}

// MessageDelta carries message-level changes near the end of the stream.
// Either field may be nil when the server omitted it.
type MessageDelta struct {
	StopReason   *StopReason
	StopSequence string
	Usage        *Usage
}

// MessageStop terminates the stream.
type MessageStop struct{}

// ErrorEvent is an in-band error. Parsing errors are recoverable and the
// stream continues after them; every other kind ends the stream.
type ErrorEvent struct {
	Kind    ErrorKind
	Message string

	// Payload holds the offending segment for parsing errors.
	Payload string
}

func (MessageStart) EventType() string      { return EventMessageStart }
func (ContentBlockStart) EventType() string { return EventContentBlockStart }
func (ContentBlockDelta) EventType() string { return EventContentBlockDelta }
func (ContentBlockStop) EventType() string  { return EventContentBlockStop }
func (MessageDelta) EventType() string      { return EventMessageDelta }
func (MessageStop) EventType() string       { return EventMessageStop }
func (ErrorEvent) EventType() string        { return EventError }

func (MessageStart) streamEvent()      {}
func (ContentBlockStart) streamEvent() {}
func (ContentBlockDelta) streamEvent() {}
func (ContentBlockStop) streamEvent()  {}
func (MessageDelta) streamEvent()      {}
func (MessageStop) streamEvent()       {}
func (ErrorEvent) streamEvent()        {}

// Terminal reports whether the stream ends with this event.
func (e ErrorEvent) Terminal() bool {
	return !e.Kind.Recoverable()
}

// Error lets a terminal ErrorEvent be returned as an error.
func (e ErrorEvent) Error() string {
	return fmt.Sprintf("stream %s: %s", e.Kind, e.Message)
}

// Delta type names as they appear on the wire.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeSignature = "signature_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// Delta is the payload of a ContentBlockDelta: TextDelta, ThinkingDelta,
// SignatureDelta, InputJSONDelta or RawDelta.
type Delta interface {
	DeltaType() string
}

// TextDelta appends text to a text block.
type TextDelta struct {
	Text string
}

// ThinkingDelta appends reasoning text to a thinking block.
type ThinkingDelta struct {
	Thinking string
}

// SignatureDelta carries the cryptographic signature of a thinking block.
type SignatureDelta struct {
	Signature string
}

// InputJSONDelta is a fragment of a tool_use block's JSON input.
type InputJSONDelta struct {
	PartialJSON string
}

// RawDelta preserves a delta type this package does not know about.
type RawDelta struct {
	Type string
	JSON string
}

func (TextDelta) DeltaType() string      { return DeltaTypeText }
func (ThinkingDelta) DeltaType() string  { return DeltaTypeThinking }
func (SignatureDelta) DeltaType() string { return DeltaTypeSignature }
func (InputJSONDelta) DeltaType() string { return DeltaTypeInputJSON }
func (d RawDelta) DeltaType() string     { return d.Type }

// StopReason indicates why generation stopped.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonPauseTurn    StopReason = "pause_turn"
	StopReasonRefusal      StopReason = "refusal"
)

// Usage holds token counts. Counts in a MessageDelta are cumulative.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Merge overlays the non-zero counts of u2 onto u.
func (u Usage) Merge(u2 Usage) Usage {
	if u2.InputTokens > 0 {
		u.InputTokens = u2.InputTokens
	}
	if u2.OutputTokens > 0 {
		u.OutputTokens = u2.OutputTokens
	}
	if u2.CacheCreationInputTokens > 0 {
		u.CacheCreationInputTokens = u2.CacheCreationInputTokens
	}
	if u2.CacheReadInputTokens > 0 {
		u.CacheReadInputTokens = u2.CacheReadInputTokens
	}
	return u
}
