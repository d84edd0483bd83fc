// Package search queries a Vertex AI Search data store for information about
// the area around a listing, primarily the municipality's finances.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/prompts"
)

// Unparsed is the overall assessment recorded when the answer is not JSON.
const Unparsed = "解析不能"

// API types reported in Metadata.
const (
	APIAnswer         = "answer"
	APISearchFallback = "search_fallback"
)

// Result is one document returned by the data store.
type Result struct {
	DocumentID     string  `json:"document_id"`
	Title          string  `json:"title"`
	URI            string  `json:"uri"`
	Snippet        string  `json:"snippet"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Citation ties a span of the answer text to source references.
type Citation struct {
	StartIndex int64    `json:"start_index"`
	EndIndex   int64    `json:"end_index"`
	Sources    []string `json:"sources"`
}

// Answer is the generated answer and the documents it was grounded on.
type Answer struct {
	Text      string
	Results   []Result
	Citations []Citation
}

// SearchResponse is a plain search result page.
type SearchResponse struct {
	Results   []Result
	TotalSize int
	Summary   string
}

// Backend is the data store API. DiscoveryBackend implements it.
type Backend interface {
	Answer(ctx context.Context, query, preamble string, maxResults int) (*Answer, error)
	Search(ctx context.Context, query string, pageSize int, summarize bool) (*SearchResponse, error)
}

// FinancialAnalysis is the structured answer requested by the financial
// preamble. Field names match schemas/financial_analysis.schema.json.
type FinancialAnalysis struct {
	PositiveFactors     []string          `json:"positive_factors"`
	NegativeFactors     []string          `json:"negative_factors"`
	FinancialIndicators map[string]string `json:"financial_indicators"`
	OverallAssessment   string            `json:"overall_assessment"`
	Summary             string            `json:"summary"`
	RawResponse         string            `json:"raw_response,omitempty"`
}

// Metadata describes how a financial lookup was served.
type Metadata struct {
	DataStoreID  string `json:"data_store_id"`
	Location     string `json:"location"`
	ResultsCount int    `json:"results_count"`
	APIType      string `json:"api_type"`
	JSONParsed   bool   `json:"json_parsed"`
}

// FinancialInfo is the outcome of a financial lookup for an address.
type FinancialInfo struct {
	Query      string             `json:"query"`
	Address    string             `json:"address"`
	Results    []Result           `json:"results"`
	TotalSize  int                `json:"total_size"`
	Summary    string             `json:"summary"`
	AnswerText string             `json:"answer_text,omitempty"`
	Structured *FinancialAnalysis `json:"structured_data,omitempty"`
	Citations  []Citation         `json:"citations,omitempty"`
	Metadata   Metadata           `json:"search_metadata"`
}

// GeneralResult is the outcome of a free-form search.
type GeneralResult struct {
	Query     string   `json:"query"`
	Results   []Result `json:"results"`
	TotalSize int      `json:"total_size"`
}

// Config identifies the data store and serving config.
type Config struct {
	ProjectID       string
	Location        string
	DataStoreID     string
	ServingConfigID string
}

// ServingConfigPath returns the resource name of the serving config.
func (c Config) ServingConfigPath() string {
	return fmt.Sprintf("projects/%s/locations/%s/dataStores/%s/servingConfigs/%s",
		c.ProjectID, c.Location, c.DataStoreID, c.ServingConfigID)
}

// DebugInfo describes the service configuration.
type DebugInfo struct {
	ProjectID         string `json:"project_id"`
	Location          string `json:"location"`
	DataStoreID       string `json:"data_store_id"`
	ServingConfigID   string `json:"serving_config_id"`
	ServingConfigPath string `json:"serving_config_path"`
	ClientInitialized bool   `json:"client_initialized"`
}

// Service runs financial and general searches over a Backend.
type Service struct {
	backend Backend
	config  Config
}

// NewService creates a search service.
func NewService(backend Backend, config Config) (*Service, error) {
	if config.ProjectID == "" {
		return nil, errors.New("project ID is required")
	}
	if config.DataStoreID == "" {
		return nil, errors.New("data store ID is required")
	}
	if config.Location == "" {
		config.Location = "global"
	}
	if config.ServingConfigID == "" {
		config.ServingConfigID = "default_search"
	}
	return &Service{backend: backend, config: config}, nil
}

// FinancialInfo asks the data store about the finances of the municipality
// at address. The answer is parsed as a FinancialAnalysis; when it is not
// JSON the raw text is kept with an overall assessment of Unparsed. If the
// Answer API fails, a summarized search is used instead.
func (s *Service) FinancialInfo(ctx context.Context, address string, pageSize int) (*FinancialInfo, error) {
	query := prompts.Format(prompts.MustGet(prompts.PropertyFile, prompts.KeyFinancialQuery), map[string]string{"Address": address})
	preamble := prompts.MustGet(prompts.PropertyFile, prompts.KeyFinancialPreamble)
	log := slog.With("address", address, "data_store", s.config.DataStoreID)

	answer, err := s.backend.Answer(ctx, query, preamble, pageSize)
	if err != nil {
		log.WarnContext(ctx, "answer API failed, falling back to search", "error", err)
		return s.financialFallback(ctx, query, address, pageSize, err)
	}

	structured, parsed := ParseFinancialAnalysis(answer.Text)
	if !parsed {
		log.WarnContext(ctx, "answer is not JSON, keeping text")
	}
	log.InfoContext(ctx, "financial search completed", "answer_chars", len(answer.Text), "results", len(answer.Results))

	return &FinancialInfo{
		Query:      query,
		Address:    address,
		Results:    answer.Results,
		TotalSize:  len(answer.Results),
		Summary:    answer.Text,
		AnswerText: answer.Text,
		Structured: structured,
		Citations:  answer.Citations,
		Metadata:   s.metadata(APIAnswer, len(answer.Results), parsed),
	}, nil
}

func (s *Service) financialFallback(ctx context.Context, query, address string, pageSize int, answerErr error) (*FinancialInfo, error) {
	resp, err := s.backend.Search(ctx, query, pageSize, true)
	if err != nil {
		return nil, fmt.Errorf("financial search failed: %w", errors.Join(answerErr, err))
	}
	return &FinancialInfo{
		Query:     query,
		Address:   address,
		Results:   resp.Results,
		TotalSize: len(resp.Results),
		Summary:   resp.Summary,
		Metadata:  s.metadata(APISearchFallback, len(resp.Results), false),
	}, nil
}

// General runs a free-form search and returns results with snippets.
func (s *Service) General(ctx context.Context, query string, pageSize int) (*GeneralResult, error) {
	resp, err := s.backend.Search(ctx, query, pageSize, false)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &GeneralResult{Query: query, Results: resp.Results, TotalSize: resp.TotalSize}, nil
}

// Available reports whether a one-result test search succeeds.
func (s *Service) Available(ctx context.Context) bool {
	if _, err := s.backend.Search(ctx, "test", 1, false); err != nil {
		slog.WarnContext(ctx, "search connectivity check failed", "error", err)
		return false
	}
	return true
}

// DebugInfo returns the service configuration.
func (s *Service) DebugInfo() DebugInfo {
	return DebugInfo{
		ProjectID:         s.config.ProjectID,
		Location:          s.config.Location,
		DataStoreID:       s.config.DataStoreID,
		ServingConfigID:   s.config.ServingConfigID,
		ServingConfigPath: s.config.ServingConfigPath(),
		ClientInitialized: s.backend != nil,
	}
}

func (s *Service) metadata(apiType string, results int, parsed bool) Metadata {
	return Metadata{
		DataStoreID:  s.config.DataStoreID,
		Location:     s.config.Location,
		ResultsCount: results,
		APIType:      apiType,
		JSONParsed:   parsed,
	}
}

// ParseFinancialAnalysis extracts the JSON object from a fenced or bare
// answer. When no object parses, the text becomes the summary and the second
// result is false.
func ParseFinancialAnalysis(text string) (*FinancialAnalysis, bool) {
	var fa FinancialAnalysis
	if obj := llm.ExtractJSONObject(llm.CleanJSONBlock(text)); obj != "" {
		if err := json.Unmarshal([]byte(obj), &fa); err == nil {
			return &fa, true
		}
	}
	return &FinancialAnalysis{
		PositiveFactors:     []string{},
		NegativeFactors:     []string{},
		FinancialIndicators: map[string]string{},
		OverallAssessment:   Unparsed,
		Summary:             text,
		RawResponse:         text,
	}, false
}
