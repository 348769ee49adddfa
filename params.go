package claude

// Default and limit values for request parameters.
const (
	DefaultMaxTokens = 4096

	// Thinking budgets for ThinkingLevel; the API minimum is 1024.
	ThinkingBudgetLow    = 2000
	ThinkingBudgetMedium = 5000
	ThinkingBudgetHigh   = 12000
	MinThinkingBudget    = 1024
)

// RequestParams holds the optional parameters of a Messages API request.
// All fields are optional pointers to distinguish "not set" from "set to zero value".
type RequestParams struct {
	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0)
	// 0.0 = deterministic, 1.0 = maximum randomness
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	// TopK limits sampling to top K tokens
	TopK *int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`

	// System prompt
	System *string `json:"system,omitempty" yaml:"system,omitempty"`

	// ThinkingEnabled enables extended thinking mode
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty" yaml:"thinking_enabled,omitempty"`

	// ThinkingLevel sets the thinking budget: "low", "medium", "high"
	// Maps to token budgets: low=2000, medium=5000, high=12000
	ThinkingLevel *string `json:"thinking_level,omitempty" yaml:"thinking_level,omitempty"`

	// ThinkingBudget overrides ThinkingLevel with an explicit token budget
	ThinkingBudget *int `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`

	// Tools available for the model to use
	Tools []Tool `json:"tools,omitempty" yaml:"-"`

	// ToolChoice controls whether/which tools to use
	ToolChoice *ToolChoice `json:"tool_choice,omitempty" yaml:"-"`
}

// ValidateRequestParams validates request parameters.
// Errors are *ValidationError and match ErrInvalidRequest.
func ValidateRequestParams(params *RequestParams) error {
	if params == nil {
		return nil // nil params is valid
	}

	if params.Temperature != nil {
		if *params.Temperature < 0.0 || *params.Temperature > 1.0 {
			return &ValidationError{Field: "temperature", Value: *params.Temperature, Reason: "must be between 0.0 and 1.0"}
		}
	}

	if params.TopP != nil {
		if *params.TopP < 0.0 || *params.TopP > 1.0 {
			return &ValidationError{Field: "top_p", Value: *params.TopP, Reason: "must be between 0.0 and 1.0"}
		}
	}

	if params.TopK != nil && *params.TopK < 0 {
		return &ValidationError{Field: "top_k", Value: *params.TopK, Reason: "must be non-negative"}
	}

	if params.MaxTokens != nil && *params.MaxTokens < 1 {
		return &ValidationError{Field: "max_tokens", Value: *params.MaxTokens, Reason: "must be positive"}
	}

	if params.ThinkingLevel != nil {
		switch *params.ThinkingLevel {
		case "low", "medium", "high":
		default:
			return &ValidationError{Field: "thinking_level", Value: *params.ThinkingLevel, Reason: "must be 'low', 'medium', or 'high'"}
		}
	}

	if params.ThinkingBudget != nil && *params.ThinkingBudget < MinThinkingBudget {
		return &ValidationError{Field: "thinking_budget", Value: *params.ThinkingBudget, Reason: "must be at least 1024"}
	}

	if params.IsThinkingEnabled() && params.GetThinkingBudgetTokens() >= params.GetMaxTokens(DefaultMaxTokens) {
		return &ValidationError{Field: "max_tokens", Value: params.GetMaxTokens(DefaultMaxTokens), Reason: "must be greater than the thinking budget"}
	}

	for i := range params.Tools {
		if err := params.Tools[i].Validate(); err != nil {
			return &ValidationError{Field: "tools", Value: params.Tools[i].Name, Reason: err.Error()}
		}
	}

	if params.ToolChoice != nil {
		if err := params.ToolChoice.Validate(); err != nil {
			return &ValidationError{Field: "tool_choice", Value: params.ToolChoice.Mode, Reason: err.Error()}
		}
	}

	return nil
}

// GetMaxTokens returns max_tokens with default fallback
func (rp *RequestParams) GetMaxTokens(defaultValue int) int {
	if rp != nil && rp.MaxTokens != nil {
		return *rp.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (rp *RequestParams) GetTemperature(defaultValue float64) float64 {
	if rp != nil && rp.Temperature != nil {
		return *rp.Temperature
	}
	return defaultValue
}

// IsThinkingEnabled reports whether extended thinking was requested.
func (rp *RequestParams) IsThinkingEnabled() bool {
	return rp != nil && rp.ThinkingEnabled != nil && *rp.ThinkingEnabled
}

// GetThinkingBudgetTokens returns the thinking budget in tokens.
// An explicit ThinkingBudget wins; otherwise ThinkingLevel is mapped
// (low = 2000, medium = 5000, high = 12000) and an unset level means low.
func (rp *RequestParams) GetThinkingBudgetTokens() int {
	if !rp.IsThinkingEnabled() {
		return 0
	}
	if rp.ThinkingBudget != nil {
		return *rp.ThinkingBudget
	}
	if rp.ThinkingLevel == nil {
		return ThinkingBudgetLow
	}

	switch *rp.ThinkingLevel {
	case "medium":
		return ThinkingBudgetMedium
	case "high":
		return ThinkingBudgetHigh
	default:
		return ThinkingBudgetLow
	}
}
