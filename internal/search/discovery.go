package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/option"
)

// Placeholders used when a search result carries no derived data.
const (
	untitled  = "タイトル未取得"
	noSnippet = "スニペット未生成"
)

// DiscoveryBackend calls the Discovery Engine REST API.
type DiscoveryBackend struct {
	servingConfigs *discoveryengine.ProjectsLocationsDataStoresServingConfigsService
	servingConfig  string
}

// NewDiscoveryBackend creates a backend for the serving config in config,
// using application default credentials unless opts override them.
func NewDiscoveryBackend(ctx context.Context, config Config, opts ...option.ClientOption) (*DiscoveryBackend, error) {
	svc, err := discoveryengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery engine service: %w", err)
	}
	if config.Location == "" {
		config.Location = "global"
	}
	if config.ServingConfigID == "" {
		config.ServingConfigID = "default_search"
	}
	return &DiscoveryBackend{
		servingConfigs: svc.Projects.Locations.DataStores.ServingConfigs,
		servingConfig:  config.ServingConfigPath(),
	}, nil
}

// Answer calls the Answer API with citations and a Japanese answer.
func (b *DiscoveryBackend) Answer(ctx context.Context, query, preamble string, maxResults int) (*Answer, error) {
	req := &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequest{
		Query: &discoveryengine.GoogleCloudDiscoveryengineV1Query{Text: query},
		SearchSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestSearchSpec{
			SearchParams: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestSearchSpecSearchParams{
				MaxReturnResults: int64(maxResults),
			},
		},
		AnswerGenerationSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpec{
			ModelSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpecModelSpec{
				ModelVersion: "stable",
			},
			PromptSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpecPromptSpec{
				Preamble: preamble,
			},
			IncludeCitations:   true,
			AnswerLanguageCode: "ja",
		},
	}

	resp, err := b.servingConfigs.Answer(b.servingConfig, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("answer request failed: %w", err)
	}
	if resp.Answer == nil {
		return &Answer{}, nil
	}

	out := &Answer{Text: resp.Answer.AnswerText}
	for _, step := range resp.Answer.Steps {
		for _, action := range step.Actions {
			if action.Observation == nil {
				continue
			}
			for _, sr := range action.Observation.SearchResults {
				var snippets []string
				for _, si := range sr.SnippetInfo {
					if si.Snippet != "" {
						snippets = append(snippets, si.Snippet)
					}
				}
				out.Results = append(out.Results, Result{
					DocumentID: sr.Document,
					Title:      sr.Title,
					URI:        sr.Uri,
					Snippet:    strings.Join(snippets, " | "),
				})
			}
		}
	}
	for _, c := range resp.Answer.Citations {
		citation := Citation{StartIndex: c.StartIndex, EndIndex: c.EndIndex}
		for _, src := range c.Sources {
			citation.Sources = append(citation.Sources, src.ReferenceId)
		}
		out.Citations = append(out.Citations, citation)
	}
	return out, nil
}

// Search calls the Search API with snippets and, when summarize is set, a
// summary of the top results.
func (b *DiscoveryBackend) Search(ctx context.Context, query string, pageSize int, summarize bool) (*SearchResponse, error) {
	spec := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpec{
		SnippetSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSnippetSpec{
			ReturnSnippet: true,
		},
	}
	if summarize {
		spec.SummarySpec = &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSummarySpec{
			SummaryResultCount: 5,
			IncludeCitations:   true,
		}
	}
	req := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query:             query,
		PageSize:          int64(pageSize),
		ContentSearchSpec: spec,
	}

	resp, err := b.servingConfigs.Search(b.servingConfig, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	out := &SearchResponse{TotalSize: int(resp.TotalSize)}
	if resp.Summary != nil {
		out.Summary = resp.Summary.SummaryText
	}
	for _, r := range resp.Results {
		if r.Document == nil {
			continue
		}
		result := Result{DocumentID: r.Document.Id, Title: untitled, Snippet: noSnippet}
		if len(r.Document.DerivedStructData) > 0 {
			applyDerivedData(&result, r.Document.DerivedStructData)
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}

// derivedData is the subset of a document's derived struct data we read.
type derivedData struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	URI      string `json:"uri"`
	Content  string `json:"content"`
	Snippets []struct {
		Snippet string `json:"snippet"`
	} `json:"snippets"`
}

func applyDerivedData(r *Result, raw []byte) {
	var d derivedData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}
	if d.Title != "" {
		r.Title = d.Title
	}
	r.URI = d.URI
	if r.URI == "" {
		r.URI = d.Link
	}
	r.Content = d.Content

	var snippets []string
	for _, s := range d.Snippets {
		if s.Snippet != "" {
			snippets = append(snippets, s.Snippet)
		}
	}
	if len(snippets) > 0 {
		r.Snippet = strings.Join(snippets, " | ")
	}
}
