package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	claude "github.com/haowjy/meridian-claude-go"
)

// convertToolsToAnthropicTools converts library tools to Anthropic SDK format.
func convertToolsToAnthropicTools(tools []claude.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}

		switch tool.Type {
		case claude.ToolTypeWebSearch:
			// Server-side; name and type marshal from their defaults.
			result = append(result, anthropic.ToolUnionParam{
				OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{},
			})

		case claude.ToolTypeTextEditor:
			result = append(result, anthropic.ToolUnionParam{
				OfTextEditor20250728: &anthropic.ToolTextEditor20250728Param{},
			})

		case claude.ToolTypeBash:
			result = append(result, anthropic.ToolUnionParam{
				OfBashTool20250124: &anthropic.ToolBash20250124Param{},
			})

		default:
			result = append(result, convertCustomTool(tool))
		}
	}

	return result, nil
}

// convertCustomTool converts a custom function tool. The API wants the
// properties and required list split out of the schema; everything else
// goes in ExtraFields.
func convertCustomTool(tool *claude.Tool) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: tool.InputSchema.Properties,
		Required:   tool.InputSchema.Required,
	}
	if ap := tool.InputSchema.AdditionalProperties; ap != nil {
		schema.ExtraFields = map[string]any{"additionalProperties": *ap}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
	if tool.Description != "" {
		toolParam.OfTool.Description = anthropic.String(tool.Description)
	}
	return toolParam
}

// convertToolChoice converts library ToolChoice to Anthropic format.
// Returns nil if no tool choice specified (lets the model decide).
func convertToolChoice(choice *claude.ToolChoice) (*anthropic.ToolChoiceUnionParam, error) {
	if choice == nil {
		return nil, nil
	}

	if err := choice.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool choice: %w", err)
	}

	switch choice.Mode {
	case claude.ToolChoiceModeAuto:
		return &anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}, nil

	case claude.ToolChoiceModeRequired:
		// Anthropic calls this "any"
		return &anthropic.ToolChoiceUnionParam{
			OfAny: &anthropic.ToolChoiceAnyParam{},
		}, nil

	case claude.ToolChoiceModeNone:
		noneParam := anthropic.NewToolChoiceNoneParam()
		return &anthropic.ToolChoiceUnionParam{
			OfNone: &noneParam,
		}, nil

	default:
		unionParam := anthropic.ToolChoiceParamOfTool(*choice.ToolName)
		return &unionParam, nil
	}
}
