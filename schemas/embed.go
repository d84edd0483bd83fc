// Package schemas holds the JSON Schemas for model output documents.
package schemas

import "embed"

// FS contains every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names.
const (
	PropertyAnalysis  = "property_analysis.schema.json"
	FinancialAnalysis = "financial_analysis.schema.json"
)
