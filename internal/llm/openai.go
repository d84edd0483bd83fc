package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIClient implements Client over the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	config *Config
}

// NewOpenAIClient builds a client. Extra request options are mainly used to
// point the client at a test server.
func NewOpenAIClient(config *Config, apiKey string, opts ...option.RequestOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

func (c *OpenAIClient) params(req Request, messages []openai.ChatCompletionMessageParamUnion) (openai.ChatCompletionNewParams, error) {
	name, err := resolveModel(c.config, req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	if req.SystemInstruction != "" {
		messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.SystemInstruction)}, messages...)
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(name),
		Messages: messages,
	}

	cfg := c.config.Generation.Merge(req.Config)
	if cfg.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(cfg.MaxOutputTokens))
	}
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(float64(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		params.TopP = openai.Float(float64(*cfg.TopP))
	}
	if len(cfg.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSequences}
	}
	return params, nil
}

func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams, what string) (*Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &APICallError{Provider: ProviderOpenAI, Message: what, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &EmptyResponseError{Provider: ProviderOpenAI}
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, &EmptyResponseError{Provider: ProviderOpenAI, FinishReason: string(choice.FinishReason)}
	}
	return &Response{
		Content:      content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: &Usage{
			PromptTokens:     int32(resp.Usage.PromptTokens),
			CandidatesTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:      int32(resp.Usage.TotalTokens),
		},
	}, nil
}

// Generate generates text content
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := c.params(req, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)})
	if err != nil {
		return nil, err
	}
	return c.complete(ctx, params, "chat completion")
}

// GenerateJSON generates JSON content
func (c *OpenAIClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	params, err := c.params(req, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)})
	if err != nil {
		return nil, err
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}

	resp, err := c.complete(ctx, params, "JSON chat completion")
	if err != nil {
		return nil, err
	}
	resp.Content = CleanJSONBlock(resp.Content)
	return resp, nil
}

// Stream streams generated text to fn
func (c *OpenAIClient) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
	params, err := c.params(req, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)})
	if err != nil {
		return err
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := fn(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return &APICallError{Provider: ProviderOpenAI, Message: "stream chat completion", Cause: err}
	}
	return nil
}

// Chat sends the whole conversation
func (c *OpenAIClient) Chat(ctx context.Context, history []Message, req Request) (*Response, error) {
	if _, _, err := splitHistory(history); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		if m.Role == RoleModel {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params, err := c.params(req, messages)
	if err != nil {
		return nil, err
	}
	return c.complete(ctx, params, "chat")
}

// AnalyzeImage sends the image inline as a data URI
func (c *OpenAIClient) AnalyzeImage(ctx context.Context, img Image, req Request) (*Response, error) {
	uri := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: uri}),
	}
	params, err := c.params(req, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)})
	if err != nil {
		return nil, err
	}
	return c.complete(ctx, params, "image analysis")
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no resources.
func (c *OpenAIClient) Close() error {
	return nil
}
