package llm

import (
	"context"
	"fmt"
)

// Request describes a single generation call.
type Request struct {
	Prompt string
	// Model overrides the tier lookup when set.
	Model             string
	Tier              ModelTier
	SystemInstruction string
	Config            *GenerationConfig
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required,max=32000"`
}

// Image is raw image data sent with a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Usage reports token accounting for a call.
type Usage struct {
	PromptTokens     int32 `json:"prompt_tokens"`
	CandidatesTokens int32 `json:"candidates_tokens"`
	TotalTokens      int32 `json:"total_tokens"`
}

// Response is the result of a generation call.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate produces text for a single prompt
	Generate(ctx context.Context, req Request) (*Response, error)
	// GenerateJSON produces a JSON document; markdown fences are stripped
	GenerateJSON(ctx context.Context, req Request) (*Response, error)
	// Stream delivers generated text incrementally to fn
	Stream(ctx context.Context, req Request, fn func(chunk string) error) error
	// Chat continues a conversation whose last message is from the user
	Chat(ctx context.Context, history []Message, req Request) (*Response, error)
	// AnalyzeImage answers req.Prompt about an image
	AnalyzeImage(ctx context.Context, img Image, req Request) (*Response, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// Credentials carries what each provider needs to authenticate.
type Credentials struct {
	ProjectID    string
	Location     string
	GeminiAPIKey string
	OpenAIAPIKey string
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, creds Credentials) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderVertex, "":
		return NewVertexClient(ctx, config, creds.ProjectID, creds.Location)
	case ProviderGemini:
		return NewGeminiClient(ctx, config, creds.GeminiAPIKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, creds.OpenAIAPIKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// resolveModel picks the model for a request.
func resolveModel(config *Config, req Request) (string, error) {
	if req.Model != "" {
		return req.Model, nil
	}
	tier := req.Tier
	if tier == "" {
		tier = TierStandard
	}
	model := config.GetModel(tier)
	if model == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	return model, nil
}

// splitHistory validates a chat history and separates the final user turn.
func splitHistory(history []Message) ([]Message, Message, error) {
	if len(history) == 0 {
		return nil, Message{}, fmt.Errorf("chat history is empty")
	}
	last := history[len(history)-1]
	if last.Role != RoleUser {
		return nil, Message{}, fmt.Errorf("last message must be from the user")
	}
	return history[:len(history)-1], last, nil
}
