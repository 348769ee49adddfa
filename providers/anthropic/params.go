package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/sjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// buildMessageParams constructs Anthropic API parameters from a MessageRequest.
// Shared by CreateMessage, StreamMessage and NewBatchRequest.
func buildMessageParams(req *claude.MessageRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertToAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	params := req.Params
	if params == nil {
		params = &claude.RequestParams{}
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(params.GetMaxTokens(claude.DefaultMaxTokens)),
	}

	if len(params.Stop) > 0 {
		apiParams.StopSequences = params.Stop
	}

	if params.System != nil {
		apiParams.System = []anthropic.TextBlockParam{{Text: *params.System}}
	}

	// Sampling parameters cannot be combined with extended thinking.
	if budget := params.GetThinkingBudgetTokens(); budget > 0 {
		apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
	} else {
		if params.Temperature != nil {
			apiParams.Temperature = anthropic.Float(*params.Temperature)
		}
		if params.TopK != nil {
			apiParams.TopK = anthropic.Int(int64(*params.TopK))
		}
	}
	if params.TopP != nil {
		apiParams.TopP = anthropic.Float(*params.TopP)
	}

	tools, err := convertToolsToAnthropicTools(params.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert tools: %w", err)
	}
	apiParams.Tools = tools

	choice, err := convertToolChoice(params.ToolChoice)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if choice != nil {
		apiParams.ToolChoice = *choice
	}

	return apiParams, nil
}

// encodeMessageParams returns the JSON request body. With stream set the
// body asks for server-sent events.
func encodeMessageParams(req *claude.MessageRequest, stream bool) ([]byte, error) {
	apiParams, err := buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(apiParams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if stream {
		body, err = sjson.SetBytes(body, "stream", true)
		if err != nil {
			return nil, fmt.Errorf("failed to set stream flag: %w", err)
		}
	}
	return body, nil
}
