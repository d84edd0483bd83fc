// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "PropertyAnalysis")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Base every statement on the listing text; write \"不明\" when the text does not say.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Listing:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// PropertyAnalysisSchema returns the extraction schema for a real-estate listing.
// Field names match schemas/property_analysis.schema.json.
func PropertyAnalysisSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "PropertyAnalysis",
		Description: `あなたは日本の不動産物件を評価する専門家です。
以下の物件情報を読み、購入・賃貸を検討している人のために客観的に分析してください。
回答はすべて日本語で記述してください。`,
		Fields: []SchemaField{
			{Name: "property_name", Type: "\"string\"", Description: "物件名", Required: false},
			{Name: "price_summary", Type: "\"string\"", Description: "価格・賃料と初期費用の要約", Required: true},
			{Name: "location_summary", Type: "\"string\"", Description: "所在地と交通アクセス", Required: true},
			{Name: "layout_summary", Type: "\"string\"", Description: "間取り・面積・築年数", Required: false},
			{Name: "strengths", Type: "[\"string\"]", Description: "物件の長所", Required: true},
			{Name: "concerns", Type: "[\"string\"]", Description: "注意点・短所", Required: true},
			{Name: "target_residents", Type: "[\"string\"]", Description: "向いている入居者像", Required: false},
			{Name: "price_assessment", Type: "\"割安\" | \"適正\" | \"割高\" | \"不明\"", Description: "周辺相場と比べた価格評価", Required: true},
			{Name: "summary", Type: "\"string\"", Description: "全体の総評（200字以内）", Required: true},
		},
	}
}

// ListingFieldsSchema returns the schema for recovering labeled listing
// fields from unstructured text. Kinds match types.FieldKind.
func ListingFieldsSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "ListingFields",
		Description: `Extract the structured attributes of the real-estate listing below.
Copy each value exactly as written in the listing; do not convert units or currencies.
Use one of these kinds: price, rent, management_fee, deposit, key_money, name, address,
station, area, layout, building_age, floor, parking, equipment.`,
		Fields: []SchemaField{
			{Name: "fields", Type: "[{\"kind\": string, \"label\": string, \"value\": string}]", Description: "label is the label used in the listing", Required: true},
		},
	}
}
