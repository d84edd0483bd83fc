// Package llm provides centralized LLM configuration and client abstractions.
// Property analysis runs on Gemini through Vertex AI by default; the Gemini API
// and OpenAI are available as alternate providers.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: image captions, short answers
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: chat, free-form generation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for structured property analysis
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

const (
	// ProviderVertex is Gemini served through Vertex AI (project + location credentials)
	ProviderVertex Provider = "vertex"
	// ProviderGemini is the Gemini API (API key)
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI chat completions API
	ProviderOpenAI Provider = "openai"
)

// Config holds the model configuration for the application
type Config struct {
	Provider   Provider
	Models     map[ModelTier]string
	Generation GenerationConfig
	// SafetyFilter enables blocking of medium-and-above harm probability content.
	SafetyFilter bool
}

// GenerationConfig controls sampling. Zero values mean "use the model default".
type GenerationConfig struct {
	MaxOutputTokens int32    `json:"max_output_tokens,omitempty" validate:"omitempty,gte=1,lte=8192"`
	Temperature     *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP            *float32 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK            *int32   `json:"top_k,omitempty" validate:"omitempty,gte=1,lte=100"`
	StopSequences   []string `json:"stop_sequences,omitempty" validate:"omitempty,max=5"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// DefaultGenerationConfig mirrors the service defaults: 2048 tokens,
// temperature 0.7, top_p 0.8, top_k 40.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxOutputTokens: 2048,
		Temperature:     Ptr[float32](0.7),
		TopP:            Ptr[float32](0.8),
		TopK:            Ptr[int32](40),
	}
}

// Merge overlays the non-zero values of override on c.
func (c GenerationConfig) Merge(override *GenerationConfig) GenerationConfig {
	if override == nil {
		return c
	}
	out := c
	if override.MaxOutputTokens > 0 {
		out.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.TopK != nil {
		out.TopK = override.TopK
	}
	if len(override.StopSequences) > 0 {
		out.StopSequences = override.StopSequences
	}
	return out
}

// DefaultConfig returns the default configuration (Gemini on Vertex AI)
func DefaultConfig() *Config {
	return DefaultVertexConfig()
}

// DefaultVertexConfig returns the default Vertex AI configuration
func DefaultVertexConfig() *Config {
	return &Config{
		Provider: ProviderVertex,
		Models: map[ModelTier]string{
			TierLite:     "gemini-1.5-flash",
			TierStandard: "gemini-1.5-pro",
			TierAdvanced: "gemini-1.5-pro",
		},
		Generation:   DefaultGenerationConfig(),
		SafetyFilter: true,
	}
}

// DefaultGeminiConfig returns the default Gemini API configuration
func DefaultGeminiConfig() *Config {
	cfg := DefaultVertexConfig()
	cfg.Provider = ProviderGemini
	return cfg
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4.1-mini",
			TierStandard: "gpt-4.1-mini",
			TierAdvanced: "gpt-4.1",
		},
		Generation: DefaultGenerationConfig(),
	}
}

// ConfigForProvider returns the default configuration for a provider name.
func ConfigForProvider(p Provider) (*Config, error) {
	switch p {
	case ProviderVertex, "":
		return DefaultVertexConfig(), nil
	case ProviderGemini:
		return DefaultGeminiConfig(), nil
	case ProviderOpenAI:
		return DefaultOpenAIConfig(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", p)
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// ModelInfo describes a model offered by the API.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Models lists the models clients may request by name.
func Models() []ModelInfo {
	return []ModelInfo{
		{Name: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Description: "Most capable model for complex reasoning tasks"},
		{Name: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Description: "Fast and efficient model for quick tasks"},
		{Name: "gemini-1.0-pro", DisplayName: "Gemini 1.0 Pro", Description: "Previous generation model"},
	}
}
