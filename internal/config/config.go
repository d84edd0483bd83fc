// Package config loads service settings from the environment and an optional
// JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/types"
)

// Settings holds every tunable of the server, CLI and functions.
// Environment variables are read by Load; a JSON file may override them.
type Settings struct {
	// Google Cloud
	ProjectID string `env:"GOOGLE_CLOUD_PROJECT_ID" json:"project_id,omitempty"`
	Location  string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1" json:"location,omitempty"`

	// API
	APITitle       string        `env:"API_TITLE" envDefault:"Property Analyzer API" json:"api_title,omitempty"`
	APIVersion     string        `env:"API_VERSION" envDefault:"1.0.0" json:"api_version,omitempty"`
	Port           int           `env:"PORT" envDefault:"8000" json:"port,omitempty"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:"," json:"allowed_origins,omitempty"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s" json:"-"`

	// Rate limiting
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100" json:"rate_limit_requests,omitempty"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h" json:"-"`

	// Models
	LLMProvider  string  `env:"LLM_PROVIDER" envDefault:"vertex" json:"llm_provider,omitempty"`
	DefaultModel string  `env:"DEFAULT_MODEL" envDefault:"gemini-1.5-pro" json:"default_model,omitempty"`
	MaxTokens    int     `env:"MAX_TOKENS" envDefault:"8192" json:"max_tokens,omitempty"`
	Temperature  float64 `env:"TEMPERATURE" envDefault:"0.7" json:"temperature,omitempty"`
	TopP         float64 `env:"TOP_P" envDefault:"0.8" json:"top_p,omitempty"`
	TopK         int     `env:"TOP_K" envDefault:"40" json:"top_k,omitempty"`
	GeminiAPIKey string  `env:"GEMINI_API_KEY" json:"-"`
	OpenAIAPIKey string  `env:"OPENAI_API_KEY" json:"-"`

	// Storage
	BucketName          string `env:"GCS_BUCKET_NAME" json:"bucket_name,omitempty"`
	FirestoreCollection string `env:"FIRESTORE_COLLECTION" json:"firestore_collection,omitempty"`
	DatabaseURL         string `env:"DATABASE_URL" json:"database_url,omitempty"`

	// Vertex AI Search
	SearchDataStoreID     string `env:"VERTEX_AI_SEARCH_DATA_STORE_ID" json:"search_data_store_id,omitempty"`
	SearchServingConfigID string `env:"VERTEX_AI_SEARCH_SERVING_CONFIG_ID" envDefault:"default_search" json:"search_serving_config_id,omitempty"`
	SearchLocation        string `env:"VERTEX_AI_SEARCH_LOCATION" envDefault:"global" json:"search_location,omitempty"`

	// Reasoning Engine
	ReasoningEngineID       string `env:"REASONING_ENGINE_ID" json:"reasoning_engine_id,omitempty"`
	ReasoningEngineLocation string `env:"REASONING_ENGINE_LOCATION" envDefault:"us-central1" json:"reasoning_engine_location,omitempty"`

	// Listing processing
	MaxTextLength       int     `env:"MAX_TEXT_LENGTH" envDefault:"30000" json:"max_text_length,omitempty"`
	CompressionRatio    float64 `env:"COMPRESSION_RATIO" envDefault:"0.6" json:"compression_ratio,omitempty"`
	CompressionUnit     string  `env:"COMPRESSION_UNIT" envDefault:"chars" json:"compression_unit,omitempty"`
	CompressionStrategy string  `env:"COMPRESSION_STRATEGY" envDefault:"leading" json:"compression_strategy,omitempty"`
	UseBrowser          bool    `env:"USE_BROWSER" json:"use_browser,omitempty"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" json:"log_level,omitempty"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" json:"log_format,omitempty"`
}

// Load reads settings from the environment.
func Load() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &s, nil
}

// LoadFile loads settings from a JSON file. Fields absent from the file are
// left zero so MergeWithDefaults can fill them.
func LoadFile(path string) (*Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &s, nil
}

// MergeWithDefaults returns a copy of s with zero fields taken from defaults.
func (s *Settings) MergeWithDefaults(defaults Settings) Settings {
	result := *s

	str := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	num := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	flt := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}

	str(&result.ProjectID, defaults.ProjectID)
	str(&result.Location, defaults.Location)
	str(&result.APITitle, defaults.APITitle)
	str(&result.APIVersion, defaults.APIVersion)
	num(&result.Port, defaults.Port)
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}
	if result.RequestTimeout == 0 {
		result.RequestTimeout = defaults.RequestTimeout
	}
	num(&result.RateLimitRequests, defaults.RateLimitRequests)
	if result.RateLimitWindow == 0 {
		result.RateLimitWindow = defaults.RateLimitWindow
	}
	str(&result.LLMProvider, defaults.LLMProvider)
	str(&result.DefaultModel, defaults.DefaultModel)
	num(&result.MaxTokens, defaults.MaxTokens)
	flt(&result.Temperature, defaults.Temperature)
	flt(&result.TopP, defaults.TopP)
	num(&result.TopK, defaults.TopK)
	str(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	str(&result.OpenAIAPIKey, defaults.OpenAIAPIKey)
	str(&result.BucketName, defaults.BucketName)
	str(&result.FirestoreCollection, defaults.FirestoreCollection)
	str(&result.DatabaseURL, defaults.DatabaseURL)
	str(&result.SearchDataStoreID, defaults.SearchDataStoreID)
	str(&result.SearchServingConfigID, defaults.SearchServingConfigID)
	str(&result.SearchLocation, defaults.SearchLocation)
	str(&result.ReasoningEngineID, defaults.ReasoningEngineID)
	str(&result.ReasoningEngineLocation, defaults.ReasoningEngineLocation)
	num(&result.MaxTextLength, defaults.MaxTextLength)
	flt(&result.CompressionRatio, defaults.CompressionRatio)
	str(&result.CompressionUnit, defaults.CompressionUnit)
	str(&result.CompressionStrategy, defaults.CompressionStrategy)
	str(&result.LogLevel, defaults.LogLevel)
	str(&result.LogFormat, defaults.LogFormat)

	// Bools cannot distinguish unset from false; either source may enable
	result.UseBrowser = result.UseBrowser || defaults.UseBrowser

	return result
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}
	if s.RateLimitRequests <= 0 {
		return fmt.Errorf("config error: 'rate_limit_requests' must be positive")
	}
	if s.RateLimitWindow <= 0 {
		return fmt.Errorf("config error: rate limit window must be positive")
	}
	if s.MaxTokens < 1 || s.MaxTokens > 8192 {
		return fmt.Errorf("config error: 'max_tokens' must be between 1 and 8192")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("config error: 'temperature' must be between 0 and 2")
	}
	if s.TopP < 0 || s.TopP > 1 {
		return fmt.Errorf("config error: 'top_p' must be between 0 and 1")
	}
	if s.TopK < 1 || s.TopK > 100 {
		return fmt.Errorf("config error: 'top_k' must be between 1 and 100")
	}
	if s.MaxTextLength <= 0 {
		return fmt.Errorf("config error: 'max_text_length' must be positive")
	}
	if s.CompressionRatio <= 0 || s.CompressionRatio > 1 {
		return fmt.Errorf("config error: 'compression_ratio' must be in (0, 1]")
	}
	if err := compression.ValidatePolicy(s.CompressionPolicy()); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	switch s.LLMProvider {
	case "vertex", "gemini", "openai":
	default:
		return fmt.Errorf("config error: unknown llm_provider %q", s.LLMProvider)
	}
	return nil
}

// CompressionPolicy derives the default compression policy: a budget of
// MaxTextLength * CompressionRatio in the configured unit and strategy.
func (s *Settings) CompressionPolicy() types.CompressionPolicy {
	p := compression.DefaultPolicy(int(float64(s.MaxTextLength) * s.CompressionRatio))
	if s.CompressionUnit != "" {
		p.Unit = types.SizeUnit(s.CompressionUnit)
	}
	if s.CompressionStrategy != "" {
		p.Strategy = types.Strategy(s.CompressionStrategy)
	}
	return p
}

// SlogLevel parses LogLevel, defaulting to info.
func (s *Settings) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds a logger writing LogFormat ("json" or "text") to w.
func (s *Settings) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if strings.EqualFold(s.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
