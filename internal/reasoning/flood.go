// Package reasoning queries a deployed Vertex AI Reasoning Engine agent for
// flood risk around an address.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/property-analyzer/internal/prompts"
	"golang.org/x/oauth2/google"
)

// DefaultTimeout bounds a single query.
const DefaultTimeout = 30 * time.Second

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Risk levels reported in FloodRisk.OverallRiskLevel.
const (
	RiskUnknown = "不明"
	RiskHigh    = "高"
	RiskMedium  = "中"
	RiskLow     = "低"
)

// APIError is returned for a non-200 response from the engine.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reasoning engine returned status %d: %s", e.StatusCode, e.Body)
}

// Config identifies the reasoning engine.
type Config struct {
	ProjectID string
	Location  string
	EngineID  string
}

// Endpoint returns the engine's query URL.
func (c Config) Endpoint() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/reasoningEngines/%s:query",
		c.Location, c.ProjectID, c.Location, c.EngineID)
}

// FloodRisk is the assessment extracted from the engine's answer.
type FloodRisk struct {
	OverallRiskLevel string   `json:"overall_risk_level"`
	RiskFactors      []string `json:"risk_factors"`
	SafetyMeasures   []string `json:"safety_measures"`
	HazardMaps       []string `json:"hazard_maps"`
	EvacuationInfo   []string `json:"evacuation_info"`
	Summary          string   `json:"summary"`
}

// Analysis is the result of a flood risk query.
type Analysis struct {
	Address     string          `json:"address"`
	Query       string          `json:"query"`
	AnswerText  string          `json:"answer_text"`
	Assessment  FloodRisk       `json:"flood_risk_assessment"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
	EngineID    string          `json:"reasoning_engine_id"`
	Location    string          `json:"location"`
}

// Client posts queries to the engine.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the authenticated client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithEndpoint replaces the query URL.
func WithEndpoint(url string) Option {
	return func(cl *Client) { cl.endpoint = url }
}

// NewClient creates a client authenticated with application default
// credentials unless WithHTTPClient is given.
func NewClient(ctx context.Context, config Config, opts ...Option) (*Client, error) {
	if config.ProjectID == "" {
		return nil, errors.New("project ID is required")
	}
	if config.EngineID == "" {
		return nil, errors.New("reasoning engine ID is required")
	}
	if config.Location == "" {
		config.Location = "us-central1"
	}

	c := &Client{config: config, endpoint: config.Endpoint()}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		hc, err := google.DefaultClient(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to load default credentials: %w", err)
		}
		hc.Timeout = DefaultTimeout
		c.httpClient = hc
	}
	return c, nil
}

type queryRequest struct {
	ClassMethod string     `json:"class_method"`
	Input       queryInput `json:"input"`
}

type queryInput struct {
	Input string `json:"input"`
}

// FloodRisk asks the engine about flood risk at address.
func (c *Client) FloodRisk(ctx context.Context, address string) (*Analysis, error) {
	query := prompts.Format(prompts.MustGet(prompts.PropertyFile, prompts.KeyFloodQuery), map[string]string{"Address": address})
	log := slog.With("address", address, "engine", c.config.EngineID)

	payload, err := json.Marshal(queryRequest{ClassMethod: "query", Input: queryInput{Input: query}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reasoning engine request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.ErrorContext(ctx, "reasoning engine error", "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	answer, err := answerText(body)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "flood risk analysis completed", "answer_chars", len(answer))

	return &Analysis{
		Address:     address,
		Query:       query,
		AnswerText:  answer,
		Assessment:  ExtractFloodRisk(answer),
		RawResponse: json.RawMessage(body),
		EngineID:    c.config.EngineID,
		Location:    c.config.Location,
	}, nil
}

// answerText takes the "output" member, then "result", then the whole body.
// Non-string members are kept as their JSON text.
func answerText(body []byte) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	for _, key := range []string{"output", "result"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s, nil
		}
		return string(v), nil
	}
	return string(body), nil
}

var riskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`リスク(?:レベル)?[：:]?\s*([高中低])`),
	regexp.MustCompile(`浸水リスク[：:]?\s*([高中低])`),
	regexp.MustCompile(`危険度[：:]?\s*([高中低])`),
}

var riskFactorKeywords = []string{
	"河川氾濫", "内水氾濫", "高潮", "津波", "土砂災害",
	"地盤沈下", "低地", "河川近く", "海抜が低い",
}

var safetyKeywords = []string{
	"避難場所", "避難経路", "防災グッズ", "水害対策",
	"土のう", "止水板", "浸水対策",
}

var evacuationWords = []string{"避難", "緊急", "警報"}

// ExtractFloodRisk reads a risk level, risk factors and recommended measures
// out of a free-text answer. The answer itself becomes the summary.
func ExtractFloodRisk(answer string) FloodRisk {
	risk := FloodRisk{
		OverallRiskLevel: RiskUnknown,
		RiskFactors:      []string{},
		SafetyMeasures:   []string{},
		HazardMaps:       []string{},
		EvacuationInfo:   []string{},
		Summary:          answer,
	}

	for _, p := range riskPatterns {
		if m := p.FindStringSubmatch(answer); m != nil {
			risk.OverallRiskLevel = m[1]
			break
		}
	}
	for _, kw := range riskFactorKeywords {
		if strings.Contains(answer, kw) {
			risk.RiskFactors = append(risk.RiskFactors, kw)
		}
	}
	for _, kw := range safetyKeywords {
		if strings.Contains(answer, kw) {
			risk.SafetyMeasures = append(risk.SafetyMeasures, kw)
		}
	}
	if strings.Contains(answer, "ハザードマップ") {
		risk.HazardMaps = append(risk.HazardMaps, "洪水ハザードマップ参照推奨")
	}
	for _, w := range evacuationWords {
		if strings.Contains(answer, w) {
			risk.EvacuationInfo = append(risk.EvacuationInfo, "避難計画の確認が必要")
			break
		}
	}
	return risk
}
