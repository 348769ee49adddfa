package claude

import (
	"context"
	"errors"
	"testing"
)

func toolUseEvents() []StreamEvent {
	stop := StopReasonToolUse
	return []StreamEvent{
		MessageStart{MessageID: "msg_1", Model: "claude-haiku-4-5", Usage: Usage{InputTokens: 25, OutputTokens: 1}},
		ContentBlockStart{Index: 0, BlockType: BlockTypeThinking},
		ContentBlockDelta{Index: 0, Delta: ThinkingDelta{Thinking: "User wants "}},
		ContentBlockDelta{Index: 0, Delta: ThinkingDelta{Thinking: "weather."}},
		ContentBlockDelta{Index: 0, Delta: SignatureDelta{Signature: "sig=="}},
		ContentBlockStop{Index: 0},
		ContentBlockStart{Index: 1, BlockType: BlockTypeToolUse, ToolUseID: "toolu_1", ToolName: "get_weather"},
		ContentBlockDelta{Index: 1, Delta: InputJSONDelta{PartialJSON: `{"city": "Os`}},
		ContentBlockDelta{Index: 1, Delta: InputJSONDelta{PartialJSON: `lo"}`}},
		ContentBlockStop{Index: 1},
		MessageDelta{StopReason: &stop, Usage: &Usage{OutputTokens: 40}},
		MessageStop{},
	}
}

func TestAccumulator_ToolUse(t *testing.T) {
	acc := NewAccumulator()
	for _, ev := range toolUseEvents() {
		if err := acc.Add(ev); err != nil {
			t.Fatalf("Add(%T) error = %v", ev, err)
		}
	}

	if !acc.Finished() {
		t.Fatal("Finished() = false")
	}
	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error = %v", err)
	}

	if resp.ID != "msg_1" || resp.StopReason != StopReasonToolUse {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.InputTokens != 25 || resp.Usage.OutputTokens != 40 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if len(resp.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(resp.Blocks))
	}

	thinking := resp.Blocks[0]
	if thinking.Text() != "User wants weather." || thinking.Signature != "sig==" {
		t.Errorf("thinking block = %+v", thinking)
	}

	use := resp.Blocks[1]
	if city, _ := use.Input.Get("city"); !city.Equal(String("Oslo")) {
		t.Errorf("tool input = %s", use.Input)
	}
}

func TestAccumulator_EmptyToolInput(t *testing.T) {
	acc := NewAccumulator()
	events := []StreamEvent{
		ContentBlockStart{Index: 0, BlockType: BlockTypeToolUse, ToolUseID: "toolu_1", ToolName: "now"},
		ContentBlockStop{Index: 0},
	}
	for _, ev := range events {
		if err := acc.Add(ev); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	resp, _ := acc.Response()
	if resp.Blocks[0].Input.Kind() != KindObject {
		t.Errorf("empty input should become an object, got %s", resp.Blocks[0].Input.Kind())
	}
}

func TestAccumulator_OrderingErrors(t *testing.T) {
	tests := []struct {
		name   string
		events []StreamEvent
	}{
		{"delta before start", []StreamEvent{ContentBlockDelta{Index: 0, Delta: TextDelta{Text: "x"}}}},
		{"stop before start", []StreamEvent{ContentBlockStop{Index: 3}}},
		{"started twice", []StreamEvent{ContentBlockStart{Index: 0, BlockType: BlockTypeText}, ContentBlockStart{Index: 0, BlockType: BlockTypeText}}},
		{"terminal error", []StreamEvent{ErrorEvent{Kind: ErrorKindOverloaded, Message: "busy"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator()
			var err error
			for _, ev := range tt.events {
				if err = acc.Add(ev); err != nil {
					break
				}
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if _, rerr := acc.Response(); rerr == nil {
				t.Error("Response() should keep failing after an error")
			}
		})
	}
}

func TestAccumulator_SkipsParsingErrors(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.Add(ErrorEvent{Kind: ErrorKindParsing, Payload: "{"}); err != nil {
		t.Errorf("parsing error should be absorbed, got %v", err)
	}
}

func TestAccumulate(t *testing.T) {
	run := func(events []StreamEvent) (*Response, error) {
		ch := make(chan StreamEvent, len(events))
		for _, ev := range events {
			ch <- ev
		}
		close(ch)
		return Accumulate(context.Background(), ch)
	}

	if _, err := run(toolUseEvents()); err != nil {
		t.Errorf("Accumulate() error = %v", err)
	}

	all := toolUseEvents()
	_, err := run(all[:len(all)-1])
	var ev ErrorEvent
	if !errors.As(err, &ev) || ev.Kind != ErrorKindUnexpectedEOF {
		t.Errorf("truncated stream error = %v, want %s", err, ErrorKindUnexpectedEOF)
	}
}
