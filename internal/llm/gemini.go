package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for the Gemini API
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

func (c *GeminiClient) model(req Request) (*genai.GenerativeModel, string, error) {
	name, err := resolveModel(c.config, req)
	if err != nil {
		return nil, "", err
	}

	model := c.client.GenerativeModel(name)
	cfg := c.config.Generation.Merge(req.Config)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		model.SetTopP(*cfg.TopP)
	}
	if cfg.TopK != nil {
		model.SetTopK(*cfg.TopK)
	}
	model.StopSequences = cfg.StopSequences
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if c.config.SafetyFilter {
		model.SafetySettings = []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		}
	}
	return model, name, nil
}

// Generate generates text content
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &APICallError{Provider: ProviderGemini, Message: "generate content", Cause: err}
	}
	return geminiResponse(resp, name)
}

// GenerateJSON generates JSON content
func (c *GeminiClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &APICallError{Provider: ProviderGemini, Message: "generate JSON", Cause: err}
	}
	out, err := geminiResponse(resp, name)
	if err != nil {
		return nil, err
	}
	out.Content = CleanJSONBlock(out.Content)
	return out, nil
}

// Stream streams generated text to fn
func (c *GeminiClient) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
	model, _, err := c.model(req)
	if err != nil {
		return err
	}

	iter := model.GenerateContentStream(ctx, genai.Text(req.Prompt))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return &APICallError{Provider: ProviderGemini, Message: "stream content", Cause: err}
		}
		if text := geminiText(resp); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
}

// Chat sends the final user message with the preceding turns as history
func (c *GeminiClient) Chat(ctx context.Context, history []Message, req Request) (*Response, error) {
	prior, last, err := splitHistory(history)
	if err != nil {
		return nil, err
	}
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}

	session := model.StartChat()
	for _, m := range prior {
		session.History = append(session.History, &genai.Content{
			Role:  string(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, &APICallError{Provider: ProviderGemini, Message: "send chat message", Cause: err}
	}
	return geminiResponse(resp, name)
}

// AnalyzeImage describes an image according to the prompt
func (c *GeminiClient) AnalyzeImage(ctx context.Context, img Image, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		genai.Text(req.Prompt),
	)
	if err != nil {
		return nil, &APICallError{Provider: ProviderGemini, Message: "analyze image", Cause: err}
	}
	return geminiResponse(resp, name)
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	return strings.Join(parts, "")
}

func geminiResponse(resp *genai.GenerateContentResponse, model string) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &EmptyResponseError{Provider: ProviderGemini}
	}
	finish := resp.Candidates[0].FinishReason.String()
	text := geminiText(resp)
	if text == "" {
		return nil, &EmptyResponseError{Provider: ProviderGemini, FinishReason: finish}
	}

	out := &Response{Content: text, Model: model, FinishReason: finish}
	if md := resp.UsageMetadata; md != nil {
		out.Usage = &Usage{
			PromptTokens:     md.PromptTokenCount,
			CandidatesTokens: md.CandidatesTokenCount,
			TotalTokens:      md.TotalTokenCount,
		}
	}
	return out, nil
}
