package claude

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/capabilities/anthropic.yaml
var anthropicCapabilitiesYAML []byte

// Capabilities are MODEL METADATA: limits, features and pricing used for
// display, cost estimates and early rejection of requests that cannot succeed.
// Unknown models are allowed through; the API stays the source of truth.
//
// Library users can override the embedded data with LoadCapabilitiesFromFile.

// ProviderCapabilities represents the full capability file
type ProviderCapabilities struct {
	Version     string                     `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string                     `yaml:"last_updated"` // ISO 8601 date (e.g., "2025-01-15")
	Provider    string                     `yaml:"provider"`
	Aliases     map[string]string          `yaml:"aliases"`
	Models      map[string]ModelCapability `yaml:"models"`
	Constraints ProviderConstraints        `yaml:"constraints"`
}

// ModelCapability represents the capabilities of a specific model
type ModelCapability struct {
	DisplayName     string             `yaml:"display_name"`
	ContextWindow   int                `yaml:"context_window"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
	Features        ModelFeatures      `yaml:"features"`
	Thinking        ThinkingCapability `yaml:"thinking"`
	Pricing         PricingInfo        `yaml:"pricing"`
}

// ModelFeatures indicates which features a model supports
type ModelFeatures struct {
	Vision    bool `yaml:"vision"`
	Tools     bool `yaml:"tools"`
	Thinking  bool `yaml:"thinking"`
	Streaming bool `yaml:"streaming"`
	Batch     bool `yaml:"batch"`
}

// ThinkingCapability defines thinking/reasoning constraints
type ThinkingCapability struct {
	MinBudget      int            `yaml:"min_budget"`
	MaxBudget      int            `yaml:"max_budget"`
	EffortToBudget map[string]int `yaml:"effort_to_budget"` // "low" -> 2000, etc.
}

// PricingInfo contains model pricing in USD per million tokens
type PricingInfo struct {
	InputPer1M      float64 `yaml:"input_per_1m"`
	OutputPer1M     float64 `yaml:"output_per_1m"`
	CacheWritePer1M float64 `yaml:"cache_write_per_1m"`
	CacheReadPer1M  float64 `yaml:"cache_read_per_1m"`
}

// Cost estimates the price of a request from its usage. Batch requests are
// billed at half price.
func (p PricingInfo) Cost(u Usage, batch bool) float64 {
	cost := (float64(u.InputTokens)*p.InputPer1M +
		float64(u.OutputTokens)*p.OutputPer1M +
		float64(u.CacheCreationInputTokens)*p.CacheWritePer1M +
		float64(u.CacheReadInputTokens)*p.CacheReadPer1M) / 1e6
	if batch {
		cost /= 2
	}
	return cost
}

// ProviderConstraints defines API-wide parameter limits
type ProviderConstraints struct {
	TemperatureMin   float64 `yaml:"temperature_min"`
	TemperatureMax   float64 `yaml:"temperature_max"`
	TopPMin          float64 `yaml:"top_p_min"`
	TopPMax          float64 `yaml:"top_p_max"`
	TopKMin          int     `yaml:"top_k_min"`
	TopKMax          int     `yaml:"top_k_max"`
	MaxBatchRequests int     `yaml:"max_batch_requests"`
}

// CapabilityRegistry holds the loaded capability data
type CapabilityRegistry struct {
	caps *ProviderCapabilities
	mu   sync.RWMutex
}

var (
	globalRegistry     *CapabilityRegistry
	globalRegistryOnce sync.Once
)

// GetCapabilityRegistry returns the global capability registry (singleton)
func GetCapabilityRegistry() *CapabilityRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = &CapabilityRegistry{}
		// The embedded file is part of the build; failing to parse it is a programming error.
		if err := globalRegistry.Load(anthropicCapabilitiesYAML); err != nil {
			panic(err)
		}
	})
	return globalRegistry
}

// Load replaces the registry contents with the given YAML document.
func (r *CapabilityRegistry) Load(data []byte) error {
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = &caps

	return nil
}

// LoadCapabilitiesFromFile replaces the registry contents from a YAML file
// with the same layout as the embedded data.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}
	return r.Load(data)
}

// Resolve maps an alias to its dated model id. Unknown names are returned unchanged.
func (r *CapabilityRegistry) Resolve(model string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.caps.Aliases[model]; ok {
		return id
	}
	return model
}

// GetModelCapability returns capabilities for a model id or alias
func (r *CapabilityRegistry) GetModelCapability(model string) (*ModelCapability, error) {
	id := r.Resolve(model)

	r.mu.RLock()
	defer r.mu.RUnlock()

	modelCap, ok := r.caps.Models[id]
	if !ok {
		return nil, fmt.Errorf("model %s not found in capabilities", model)
	}
	return &modelCap, nil
}

// Constraints returns the API-wide parameter limits.
func (r *CapabilityRegistry) Constraints() ProviderConstraints {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps.Constraints
}

// Models returns the known model ids, sorted.
func (r *CapabilityRegistry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.caps.Models))
	for id := range r.caps.Models {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SupportsModel checks if a model is in the registry
func (r *CapabilityRegistry) SupportsModel(model string) bool {
	_, err := r.GetModelCapability(model)
	return err == nil
}

// SupportsThinking checks if a model supports extended thinking
func (r *CapabilityRegistry) SupportsThinking(model string) bool {
	modelCap, err := r.GetModelCapability(model)
	if err != nil {
		return false
	}
	return modelCap.Features.Thinking
}

// ConvertEffortToBudget converts effort level to token budget.
// Falls back to default budgets if the model does not define the level.
func (r *CapabilityRegistry) ConvertEffortToBudget(model, effort string) (int, error) {
	defaultBudgets := map[string]int{
		"low":    ThinkingBudgetLow,
		"medium": ThinkingBudgetMedium,
		"high":   ThinkingBudgetHigh,
	}

	if modelCap, err := r.GetModelCapability(model); err == nil {
		if budget, ok := modelCap.Thinking.EffortToBudget[effort]; ok {
			return budget, nil
		}
	}

	budget, ok := defaultBudgets[effort]
	if !ok {
		return 0, fmt.Errorf("unknown effort level: %s (valid: low, medium, high)", effort)
	}
	return budget, nil
}

// CheckRequest rejects requests that a known model cannot serve.
// Unknown models pass; the API decides.
func (r *CapabilityRegistry) CheckRequest(req *MessageRequest) error {
	modelCap, err := r.GetModelCapability(req.Model)
	if err != nil {
		return nil
	}

	if maxTokens := req.Params.GetMaxTokens(DefaultMaxTokens); maxTokens > modelCap.MaxOutputTokens {
		return &ModelError{
			Model:  req.Model,
			Reason: fmt.Sprintf("max_tokens %d exceeds model limit %d", maxTokens, modelCap.MaxOutputTokens),
			Err:    ErrInvalidRequest,
		}
	}

	if req.Params.IsThinkingEnabled() && !modelCap.Features.Thinking {
		return &ModelError{
			Model:  req.Model,
			Reason: "extended thinking is not supported",
			Err:    ErrUnsupportedFeature,
		}
	}

	if req.Params != nil && len(req.Params.Tools) > 0 && !modelCap.Features.Tools {
		return &ModelError{
			Model:  req.Model,
			Reason: "tools are not supported",
			Err:    ErrUnsupportedFeature,
		}
	}

	return nil
}

// LoadCapabilitiesFromFile is a convenience function that calls the global registry's LoadCapabilitiesFromFile.
func LoadCapabilitiesFromFile(path string) error {
	return GetCapabilityRegistry().LoadCapabilitiesFromFile(path)
}
