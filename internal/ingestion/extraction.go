package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/types"
)

// extractedFields is the JSON shape returned for llm.ListingFieldsSchema.
type extractedFields struct {
	Fields []types.Field `json:"fields"`
}

// ExtractFieldsWithLLM asks the model to label listing attributes in text
// that has no "Label: value" structure. Unknown kinds and values that do not
// appear in the text are dropped, so every field stays verbatim.
func ExtractFieldsWithLLM(ctx context.Context, client llm.Client, text string) ([]types.Field, error) {
	prompt := llm.BuildExtractionPrompt(llm.ListingFieldsSchema(), text)

	resp, err := client.GenerateJSON(ctx, llm.Request{Prompt: prompt, Tier: llm.TierLite})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	var extracted extractedFields
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(resp.Content)), &extracted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w (content: %s)", err, resp.Content)
	}

	fields := make([]types.Field, 0, len(extracted.Fields))
	for _, f := range extracted.Fields {
		f.Value = strings.TrimSpace(f.Value)
		if !f.Kind.IsValid() || f.Value == "" || !strings.Contains(text, f.Value) {
			continue
		}
		if _, ok := types.KindForLabel(f.Label); !ok {
			f.Label = ""
		}
		fields = append(fields, f)
	}
	return fields, nil
}
