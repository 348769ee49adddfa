package claude

import (
	"fmt"
	"sync"
)

// Severity indicates how serious a validation warning is
type Severity string

const (
	SeverityInfo    Severity = "info"    // Informational (might be expected)
	SeverityWarning Severity = "warning" // Potentially problematic
	SeverityError   Severity = "error"   // Likely to cause API failure
)

// WarningCode is a machine-readable identifier for validation warnings
type WarningCode string

const (
	WarningCodeModelUnknown              WarningCode = "MODEL_UNKNOWN"
	WarningCodeThinkingBudgetTooHigh     WarningCode = "THINKING_BUDGET_TOO_HIGH"
	WarningCodeSamplingIgnoredByThinking WarningCode = "SAMPLING_IGNORED_BY_THINKING"
	WarningCodeTopKOutOfRange            WarningCode = "TOP_K_OUT_OF_RANGE"
	WarningCodeBatchUnsupported          WarningCode = "BATCH_UNSUPPORTED"
)

// ValidationWarning represents a potential issue that does not block the request.
type ValidationWarning struct {
	Code     WarningCode
	Field    string
	Value    any
	Message  string
	Severity Severity
}

// ValidationRule adds custom warning logic
type ValidationRule interface {
	Name() string
	Check(req *MessageRequest) []ValidationWarning
}

// RuleFunc adapts a function to ValidationRule.
type RuleFunc struct {
	RuleName string
	Fn       func(req *MessageRequest) []ValidationWarning
}

func (f RuleFunc) Name() string                                  { return f.RuleName }
func (f RuleFunc) Check(req *MessageRequest) []ValidationWarning { return f.Fn(req) }

// ValidationEngine manages validation rules and executes them
type ValidationEngine struct {
	rules []ValidationRule
	mu    sync.RWMutex
}

var (
	globalValidationEngine     *ValidationEngine
	globalValidationEngineOnce sync.Once
)

// GetValidationEngine returns the global validation engine (singleton)
func GetValidationEngine() *ValidationEngine {
	globalValidationEngineOnce.Do(func() {
		globalValidationEngine = NewValidationEngine(GetCapabilityRegistry())
	})
	return globalValidationEngine
}

// NewValidationEngine returns an engine with the built-in rules bound to registry.
func NewValidationEngine(registry *CapabilityRegistry) *ValidationEngine {
	ve := &ValidationEngine{}
	ve.AddRule(RuleFunc{"model", registry.modelWarnings})
	ve.AddRule(RuleFunc{"thinking", registry.thinkingWarnings})
	ve.AddRule(RuleFunc{"parameters", registry.parameterWarnings})
	return ve
}

// AddRule adds a validation rule to the engine
func (ve *ValidationEngine) AddRule(rule ValidationRule) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.rules = append(ve.rules, rule)
}

// RemoveRule removes a validation rule by name
func (ve *ValidationEngine) RemoveRule(name string) bool {
	ve.mu.Lock()
	defer ve.mu.Unlock()

	for i, rule := range ve.rules {
		if rule.Name() == name {
			ve.rules = append(ve.rules[:i], ve.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Validate runs all validation rules and returns warnings
func (ve *ValidationEngine) Validate(req *MessageRequest) []ValidationWarning {
	ve.mu.RLock()
	defer ve.mu.RUnlock()

	var warnings []ValidationWarning
	for _, rule := range ve.rules {
		warnings = append(warnings, rule.Check(req)...)
	}
	return warnings
}

// Warnings returns non-blocking issues with a request using the global engine.
func Warnings(req *MessageRequest) []ValidationWarning {
	return GetValidationEngine().Validate(req)
}

// FilterWarningsBySeverity returns warnings matching the specified severities
func FilterWarningsBySeverity(warnings []ValidationWarning, severities ...Severity) []ValidationWarning {
	var filtered []ValidationWarning
	for _, w := range warnings {
		for _, s := range severities {
			if w.Severity == s {
				filtered = append(filtered, w)
				break
			}
		}
	}
	return filtered
}

func (r *CapabilityRegistry) modelWarnings(req *MessageRequest) []ValidationWarning {
	if r.SupportsModel(req.Model) {
		return nil
	}
	return []ValidationWarning{{
		Code:     WarningCodeModelUnknown,
		Field:    "model",
		Value:    req.Model,
		Message:  fmt.Sprintf("Model %s not found in capabilities (capabilities may be outdated)", req.Model),
		Severity: SeverityWarning,
	}}
}

func (r *CapabilityRegistry) thinkingWarnings(req *MessageRequest) []ValidationWarning {
	if !req.Params.IsThinkingEnabled() {
		return nil
	}

	var warnings []ValidationWarning
	if req.Params.Temperature != nil || req.Params.TopK != nil {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeSamplingIgnoredByThinking,
			Field:    "temperature",
			Message:  "temperature and top_k cannot be combined with extended thinking and will be dropped",
			Severity: SeverityWarning,
		})
	}

	modelCap, err := r.GetModelCapability(req.Model)
	if err != nil {
		return warnings
	}
	if budget := req.Params.GetThinkingBudgetTokens(); modelCap.Thinking.MaxBudget > 0 && budget > modelCap.Thinking.MaxBudget {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeThinkingBudgetTooHigh,
			Field:    "thinking_budget",
			Value:    budget,
			Message:  fmt.Sprintf("Thinking budget %d above maximum %d (will likely fail)", budget, modelCap.Thinking.MaxBudget),
			Severity: SeverityError,
		})
	}
	return warnings
}

func (r *CapabilityRegistry) parameterWarnings(req *MessageRequest) []ValidationWarning {
	if req.Params == nil || req.Params.TopK == nil {
		return nil
	}
	c := r.Constraints()
	if topK := *req.Params.TopK; topK < c.TopKMin || topK > c.TopKMax {
		return []ValidationWarning{{
			Code:     WarningCodeTopKOutOfRange,
			Field:    "top_k",
			Value:    topK,
			Message:  fmt.Sprintf("TopK %d outside recommended range [%d, %d]", topK, c.TopKMin, c.TopKMax),
			Severity: SeverityWarning,
		}}
	}
	return nil
}

// BatchWarnings reports models that cannot be used with the batch API.
func (r *CapabilityRegistry) BatchWarnings(model string) []ValidationWarning {
	modelCap, err := r.GetModelCapability(model)
	if err != nil || modelCap.Features.Batch {
		return nil
	}
	return []ValidationWarning{{
		Code:     WarningCodeBatchUnsupported,
		Field:    "model",
		Value:    model,
		Message:  fmt.Sprintf("Model %s is not available through the batch API", model),
		Severity: SeverityError,
	}}
}
