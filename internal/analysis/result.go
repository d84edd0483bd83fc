package analysis

import (
	"time"

	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/reasoning"
	"github.com/jonathan/property-analyzer/internal/search"
	"github.com/jonathan/property-analyzer/internal/types"
)

// Request is one analysis run. Query is listing text or text containing a
// listing URL.
type Request struct {
	Query      string `json:"query" validate:"required,min=1,max=32000"`
	UseBrowser bool   `json:"use_browser,omitempty"`
	// Budget overrides the configured compression budget when positive.
	Budget int `json:"budget,omitempty" validate:"omitempty,min=1"`
}

// Validate validates the Request using the validator.
func (r *Request) Validate() error {
	return types.ValidateStruct(r)
}

// PropertyAnalysis is the model's structured assessment of a listing.
// Field names match schemas/property_analysis.schema.json.
type PropertyAnalysis struct {
	PropertyName    string   `json:"property_name,omitempty"`
	PriceSummary    string   `json:"price_summary"`
	LocationSummary string   `json:"location_summary"`
	LayoutSummary   string   `json:"layout_summary,omitempty"`
	Strengths       []string `json:"strengths"`
	Concerns        []string `json:"concerns"`
	TargetResidents []string `json:"target_residents,omitempty"`
	PriceAssessment string   `json:"price_assessment"`
	Summary         string   `json:"summary"`
}

// Result is everything an analysis run produced. Collaborator failures are
// recorded in Errors keyed by step; the run still succeeds.
type Result struct {
	UUID      string    `json:"uuid"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	IsURL     bool      `json:"is_url"`
	SourceURL string    `json:"source_url,omitempty"`
	Address   string    `json:"address,omitempty"`

	Compressed *types.CompressedDocument `json:"compressed"`

	Analysis *PropertyAnalysis `json:"analysis,omitempty"`
	// AnalysisText holds the raw model output when it did not match the schema.
	AnalysisText string     `json:"analysis_text,omitempty"`
	Usage        *llm.Usage `json:"usage,omitempty"`

	Financial *search.FinancialInfo `json:"financial,omitempty"`
	FloodRisk *reasoning.Analysis   `json:"flood_risk,omitempty"`

	Errors         map[string]string `json:"errors,omitempty"`
	ProcessingTime float64           `json:"processing_time"`
}

// Steps reported in progress events and Result.Errors.
const (
	StepIngest    = "ingest"
	StepCompress  = "compress"
	StepAnalysis  = "analysis"
	StepFinancial = "financial"
	StepFloodRisk = "flood_risk"
	StepStore     = "store"
)

// ProgressEvent represents a progress update during an analysis run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	UUID    string `json:"uuid,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when analysis progress occurs
type ProgressCallback func(event ProgressEvent)
