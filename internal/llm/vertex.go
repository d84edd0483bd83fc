package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// VertexClient implements Client for Gemini served through Vertex AI.
type VertexClient struct {
	baseClient *genai.Client
	config     *Config
}

// NewVertexClient creates a client bound to a project and region.
func NewVertexClient(ctx context.Context, config *Config, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{baseClient: baseClient, config: config}, nil
}

func (c *VertexClient) model(req Request) (*genai.GenerativeModel, string, error) {
	name, err := resolveModel(c.config, req)
	if err != nil {
		return nil, "", err
	}

	model := c.baseClient.GenerativeModel(name)
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
func (c *VertexClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &APICallError{Provider: ProviderVertex, Message: "generate content", Cause: err}
	}
	return vertexResponse(resp, name)
}

// GenerateJSON generates JSON content
func (c *VertexClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}
	// Force JSON output.
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &APICallError{Provider: ProviderVertex, Message: "generate JSON", Cause: err}
	}
	out, err := vertexResponse(resp, name)
	if err != nil {
		return nil, err
	}
	out.Content = CleanJSONBlock(out.Content)
	return out, nil
}

// Stream streams generated text to fn
func (c *VertexClient) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
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
			return &APICallError{Provider: ProviderVertex, Message: "stream content", Cause: err}
		}
		if text := vertexText(resp); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
}

// Chat sends the final user message with the preceding turns as history
func (c *VertexClient) Chat(ctx context.Context, history []Message, req Request) (*Response, error) {
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
		return nil, &APICallError{Provider: ProviderVertex, Message: "send chat message", Cause: err}
	}
	return vertexResponse(resp, name)
}

// AnalyzeImage describes an image according to the prompt
func (c *VertexClient) AnalyzeImage(ctx context.Context, img Image, req Request) (*Response, error) {
	model, name, err := c.model(req)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		genai.Text(req.Prompt),
	)
	if err != nil {
		return nil, &APICallError{Provider: ProviderVertex, Message: "analyze image", Cause: err}
	}
	return vertexResponse(resp, name)
}

// GetModel returns the model name for a tier
func (c *VertexClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

func vertexText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func vertexResponse(resp *genai.GenerateContentResponse, model string) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &EmptyResponseError{Provider: ProviderVertex}
	}
	finish := resp.Candidates[0].FinishReason.String()
	text := vertexText(resp)
	if text == "" {
		return nil, &EmptyResponseError{Provider: ProviderVertex, FinishReason: finish}
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
