package claude

import "testing"

func TestBlock_IsUserBlock(t *testing.T) {
	tests := []struct {
		name     string
		block    *Block
		expected bool
	}{
		{"text block", NewTextBlock("hi"), true},
		{"tool result block", NewToolResultBlock("toolu_1", "ok", false), true},
		{"thinking block", &Block{BlockType: BlockTypeThinking}, false},
		{"tool use block", NewToolUseBlock("toolu_1", "lookup", Object()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.block.IsUserBlock(); result != tt.expected {
				t.Errorf("IsUserBlock() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestBlock_IsAssistantBlock(t *testing.T) {
	tests := []struct {
		name     string
		block    *Block
		expected bool
	}{
		{"text block", NewTextBlock("hi"), true},
		{"thinking block", &Block{BlockType: BlockTypeThinking}, true},
		{"redacted thinking block", &Block{BlockType: BlockTypeRedactedThinking}, true},
		{"tool use block", NewToolUseBlock("toolu_1", "lookup", Object()), true},
		{"tool result block", NewToolResultBlock("toolu_1", "ok", false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.block.IsAssistantBlock(); result != tt.expected {
				t.Errorf("IsAssistantBlock() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestResponse_Helpers(t *testing.T) {
	resp := &Response{Blocks: []*Block{
		{BlockType: BlockTypeThinking, TextContent: stringPtr("hmm")},
		NewTextBlock("Hello, "),
		NewToolUseBlock("toolu_1", "lookup", Object(KV("q", String("x")))),
		NewTextBlock("world"),
	}}

	if got := resp.Text(); got != "Hello, world" {
		t.Errorf("Text() = %q, want %q", got, "Hello, world")
	}

	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].ToolUseID != "toolu_1" {
		t.Errorf("ToolUses() = %v", uses)
	}

	msg := resp.AssistantMessage()
	if msg.Role != RoleAssistant || len(msg.Blocks) != 4 {
		t.Errorf("AssistantMessage() = %+v", msg)
	}
}

func TestBatchStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   BatchStatus
		terminal bool
	}{
		{BatchValidating, false},
		{BatchInProgress, false},
		{BatchCancelling, false},
		{BatchCompleted, true},
		{BatchFailed, true},
		{BatchExpired, true},
		{BatchCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestRequestCounts_Progress(t *testing.T) {
	b := &Batch{RequestCounts: RequestCounts{Total: 10, Processing: 4, Succeeded: 5, Errored: 1}}

	p := b.Progress()
	if p.Done() != 6 {
		t.Errorf("Done() = %d, want 6", p.Done())
	}
	if p.Fraction() != 0.6 {
		t.Errorf("Fraction() = %v, want 0.6", p.Fraction())
	}
	if (RequestCounts{}).Fraction() != 1 {
		t.Error("empty batch should report full progress")
	}
}

func TestUsage_Merge(t *testing.T) {
	start := Usage{InputTokens: 25, OutputTokens: 1}
	got := start.Merge(Usage{OutputTokens: 42})

	want := Usage{InputTokens: 25, OutputTokens: 42}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}
