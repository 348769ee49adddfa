package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// convertToAnthropicMessages converts library messages to Anthropic SDK format.
// Consecutive messages with the same role are merged first.
func convertToAnthropicMessages(messages []claude.Message) ([]anthropic.MessageParam, error) {
	merged := mergeConsecutiveSameRoleMessages(messages)
	result := make([]anthropic.MessageParam, 0, len(merged))

	for i, msg := range merged {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))

		for j, block := range msg.Blocks {
			converted, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d, block %d: %w", i, j, err)
			}
			blocks = append(blocks, converted)
		}

		switch msg.Role {
		case claude.RoleUser:
			result = append(result, anthropic.NewUserMessage(blocks...))
		case claude.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}
	}

	return result, nil
}

func convertBlock(block *claude.Block) (anthropic.ContentBlockParamUnion, error) {
	switch block.BlockType {
	case claude.BlockTypeText:
		if block.TextContent == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("text block missing text_content")
		}
		return anthropic.NewTextBlock(*block.TextContent), nil

	case claude.BlockTypeThinking:
		if block.TextContent == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("thinking block missing text_content")
		}
		return anthropic.NewThinkingBlock(block.Signature, *block.TextContent), nil

	case claude.BlockTypeRedactedThinking:
		data := gjson.GetBytes(block.ProviderData, "data").String()
		if data == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("redacted_thinking block missing data")
		}
		return anthropic.NewRedactedThinkingBlock(data), nil

	case claude.BlockTypeToolUse:
		if block.ToolUseID == "" || block.ToolName == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool_use block missing id or name")
		}
		input := block.Input
		if input.IsNull() {
			input = claude.Object()
		}
		return anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName), nil

	case claude.BlockTypeToolResult:
		if block.ToolUseID == "" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool_result block missing tool_use_id")
		}
		return anthropic.NewToolResultBlock(block.ToolUseID, block.Text(), block.IsError), nil
	}

	// Server tool blocks and anything newer are replayed as received.
	if block.HasProviderData() {
		return param.Override[anthropic.ContentBlockParamUnion](block.ProviderData), nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", block.BlockType)
}

// mergeConsecutiveSameRoleMessages joins runs of messages with the same
// role, as happens when tool results and a follow-up question are added
// as separate user turns. Block sequences are renumbered.
func mergeConsecutiveSameRoleMessages(messages []claude.Message) []claude.Message {
	if len(messages) < 2 {
		return messages
	}

	merged := make([]claude.Message, 0, len(messages))
	for _, msg := range messages {
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Blocks = append(merged[n-1].Blocks, msg.Blocks...)
			continue
		}
		merged = append(merged, claude.Message{
			Role:   msg.Role,
			Blocks: append([]*claude.Block(nil), msg.Blocks...),
		})
	}
	if len(merged) == len(messages) {
		return messages
	}

	for i := range merged {
		for j, b := range merged[i].Blocks {
			if b.Sequence != j {
				c := *b
				c.Sequence = j
				merged[i].Blocks[j] = &c
			}
		}
	}
	return merged
}

// convertAnthropicBlock converts one response content block.
func convertAnthropicBlock(content anthropic.ContentBlockUnion, sequence int) (*claude.Block, error) {
	switch content.Type {
	case "text":
		text := content.Text
		return &claude.Block{
			BlockType:   claude.BlockTypeText,
			Sequence:    sequence,
			TextContent: &text,
		}, nil

	case "thinking":
		thinking := content.Thinking
		return &claude.Block{
			BlockType:   claude.BlockTypeThinking,
			Sequence:    sequence,
			TextContent: &thinking,
			Signature:   content.Signature,
		}, nil

	case "redacted_thinking":
		providerData, err := json.Marshal(map[string]string{
			"type": content.Type,
			"data": content.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal redacted thinking: %w", err)
		}
		return &claude.Block{
			BlockType:    claude.BlockTypeRedactedThinking,
			Sequence:     sequence,
			ProviderData: providerData,
		}, nil

	case "tool_use":
		input, err := claude.ParseValue(string(content.Input))
		if err != nil {
			return nil, fmt.Errorf("tool %s input: %w", content.Name, err)
		}
		if input.IsNull() {
			input = claude.Object()
		}
		return &claude.Block{
			BlockType: claude.BlockTypeToolUse,
			Sequence:  sequence,
			ToolUseID: content.ID,
			ToolName:  content.Name,
			Input:     input,
		}, nil

	default:
		// server_tool_use, web_search_tool_result and future types are kept
		// raw so the next turn can send them back unchanged.
		block := &claude.Block{
			BlockType:    content.Type,
			Sequence:     sequence,
			ToolUseID:    content.ID,
			ToolName:     content.Name,
			ProviderData: json.RawMessage(content.RawJSON()),
		}
		if content.ToolUseID != "" {
			block.ToolUseID = content.ToolUseID
		}
		return block, nil
	}
}

// ParseMessage converts a Messages API response body into a Response.
// It is also the batch result decoder for succeeded entries.
func ParseMessage(data json.RawMessage) (*claude.Response, error) {
	var msg anthropic.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &claude.ParsingError{Payload: string(data), Err: err}
	}
	return convertFromAnthropicResponse(&msg)
}

func convertFromAnthropicResponse(msg *anthropic.Message) (*claude.Response, error) {
	blocks := make([]*claude.Block, 0, len(msg.Content))
	for i, content := range msg.Content {
		block, err := convertAnthropicBlock(content, i)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}

	return &claude.Response{
		ID:           msg.ID,
		Blocks:       blocks,
		Model:        string(msg.Model),
		StopReason:   claude.StopReason(msg.StopReason),
		StopSequence: msg.StopSequence,
		Usage: claude.Usage{
			InputTokens:              int(msg.Usage.InputTokens),
			OutputTokens:             int(msg.Usage.OutputTokens),
			CacheCreationInputTokens: int(msg.Usage.CacheCreationInputTokens),
			CacheReadInputTokens:     int(msg.Usage.CacheReadInputTokens),
		},
	}, nil
}
