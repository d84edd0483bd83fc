// Package analysis runs a listing through ingestion, compression and the
// AI collaborators, and persists the session.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/fetch"
	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/prompts"
	"github.com/jonathan/property-analyzer/internal/reasoning"
	"github.com/jonathan/property-analyzer/internal/schemas"
	"github.com/jonathan/property-analyzer/internal/search"
	"github.com/jonathan/property-analyzer/internal/storage"
	"github.com/jonathan/property-analyzer/internal/types"
	rootschemas "github.com/jonathan/property-analyzer/schemas"
)

// DefaultSearchPageSize is the number of documents requested per search.
const DefaultSearchPageSize = 5

// ErrEmptyQuery is returned when the query is blank.
var ErrEmptyQuery = errors.New("query is empty")

// FinancialSearcher looks up municipal finances for an address.
type FinancialSearcher interface {
	FinancialInfo(ctx context.Context, address string, pageSize int) (*search.FinancialInfo, error)
}

// FloodAnalyzer assesses flood risk for an address.
type FloodAnalyzer interface {
	FloodRisk(ctx context.Context, address string) (*reasoning.Analysis, error)
}

// Options configures a Pipeline. Only LLM is required.
type Options struct {
	LLM        llm.Client
	Search     FinancialSearcher
	Flood      FloodAnalyzer
	Store      *storage.Store
	Policy     types.CompressionPolicy
	Fetcher    *fetch.CachedFetcher
	Render     func(ctx context.Context, url string) (string, error)
	PageSize   int
	OnProgress ProgressCallback
}

// Pipeline analyzes listings.
type Pipeline struct {
	llm        llm.Client
	search     FinancialSearcher
	flood      FloodAnalyzer
	store      *storage.Store
	policy     types.CompressionPolicy
	fetcher    *fetch.CachedFetcher
	render     func(ctx context.Context, url string) (string, error)
	pageSize   int
	onProgress ProgressCallback
}

// New validates opts and creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.LLM == nil {
		return nil, errors.New("LLM client is required")
	}
	if err := compression.ValidatePolicy(opts.Policy); err != nil {
		return nil, err
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultSearchPageSize
	}
	return &Pipeline{
		llm:        opts.LLM,
		search:     opts.Search,
		flood:      opts.Flood,
		store:      opts.Store,
		policy:     opts.Policy,
		fetcher:    opts.Fetcher,
		render:     opts.Render,
		pageSize:   opts.PageSize,
		onProgress: opts.OnProgress,
	}, nil
}

// Policy returns the configured compression policy.
func (p *Pipeline) Policy() types.CompressionPolicy {
	return p.policy
}

// WithProgress returns a shallow copy of p that reports progress to fn.
func (p *Pipeline) WithProgress(fn ProgressCallback) *Pipeline {
	cp := *p
	cp.onProgress = fn
	return &cp
}

func (p *Pipeline) emit(step, id, message string, content any) {
	if p.onProgress != nil {
		p.onProgress(ProgressEvent{Step: step, UUID: id, Message: message, Content: content})
	}
}

// policyFor applies a request budget over the configured policy.
func (p *Pipeline) policyFor(budget int) types.CompressionPolicy {
	policy := p.policy
	if budget > 0 {
		policy.Budget = budget
	}
	return policy
}

// Compress ingests pasted listing text and compresses it without calling
// any AI collaborator.
func (p *Pipeline) Compress(_ context.Context, text string, budget int) (*types.CompressedDocument, error) {
	doc := ingestion.IngestFromText(text, "")
	return compression.Compress(*doc, p.policyFor(budget))
}

// Analyze runs a full analysis. Ingestion and compression errors fail the
// run; the model, search, flood and storage steps only record errors.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	id := uuid.NewString()
	log := slog.With("uuid", id)
	result := &Result{UUID: id, Timestamp: started.UTC(), Query: query}
	var mu sync.Mutex
	recordErr := func(step string, err error) {
		log.WarnContext(ctx, "analysis step failed", "step", step, "error", err)
		mu.Lock()
		defer mu.Unlock()
		if result.Errors == nil {
			result.Errors = map[string]string{}
		}
		result.Errors[step] = err.Error()
	}

	if p.store != nil {
		if err := p.store.SaveRequestInfo(ctx, id, req); err != nil {
			recordErr(StepStore, err)
		}
	}

	doc, err := p.ingest(ctx, query, req.UseBrowser, result)
	if err != nil {
		return nil, err
	}
	p.emit(StepIngest, id, fmt.Sprintf("Extracted %d fields", len(doc.Fields)), doc.Fields)

	compressed, err := compression.Compress(*doc, p.policyFor(req.Budget))
	if err != nil {
		return nil, err
	}
	result.Compressed = compressed
	log.InfoContext(ctx, "compressed listing",
		"original_size", compressed.OriginalSize, "size", compressed.Size, "truncated", compressed.Truncated)
	p.emit(StepCompress, id, fmt.Sprintf("Compressed %d to %d %s", compressed.OriginalSize, compressed.Size, compressed.Unit), nil)

	if p.store != nil {
		if err := p.store.SaveExtractedText(ctx, id, types.RenderListing(doc.Fields, doc.Text)); err != nil {
			recordErr(StepStore, err)
		}
		if err := p.store.SaveCompressedText(ctx, id, compressed.Text()); err != nil {
			recordErr(StepStore, err)
		}
	}

	result.Address = AddressOf(doc.Fields)

	var g errgroup.Group
	g.Go(func() error {
		analysis, raw, usage, err := p.analyzeProperty(ctx, compressed.Text())
		mu.Lock()
		result.Analysis, result.AnalysisText, result.Usage = analysis, raw, usage
		mu.Unlock()
		if err != nil {
			recordErr(StepAnalysis, err)
			return nil
		}
		p.emit(StepAnalysis, id, "Property analysis completed", nil)
		return nil
	})
	if result.Address != "" && p.search != nil {
		g.Go(func() error {
			info, err := p.search.FinancialInfo(ctx, result.Address, p.pageSize)
			if err != nil {
				recordErr(StepFinancial, err)
				return nil
			}
			mu.Lock()
			result.Financial = info
			mu.Unlock()
			p.emit(StepFinancial, id, "Financial search completed", nil)
			return nil
		})
	}
	if result.Address != "" && p.flood != nil {
		g.Go(func() error {
			risk, err := p.flood.FloodRisk(ctx, result.Address)
			if err != nil {
				recordErr(StepFloodRisk, err)
				return nil
			}
			mu.Lock()
			result.FloodRisk = risk
			mu.Unlock()
			p.emit(StepFloodRisk, id, "Flood risk analysis completed", nil)
			return nil
		})
	}
	_ = g.Wait()

	result.ProcessingTime = time.Since(started).Seconds()
	if p.store != nil {
		if err := p.store.SaveAnalysisResult(ctx, id, result); err != nil {
			recordErr(StepStore, err)
		} else {
			p.emit(StepStore, id, "Saved analysis result", nil)
		}
	}

	log.InfoContext(ctx, "analysis completed", "is_url", result.IsURL, "errors", len(result.Errors),
		"duration", time.Since(started))
	return result, nil
}

// ingest reads the listing from the first URL in query, or treats query as
// the listing text.
func (p *Pipeline) ingest(ctx context.Context, query string, useBrowser bool, result *Result) (*types.ListingDocument, error) {
	url := ingestion.FindURL(query)
	if url == "" {
		return ingestion.IngestFromText(query, ""), nil
	}

	result.IsURL = true
	result.SourceURL = url
	return ingestion.IngestFromURL(ctx, url, &ingestion.Options{
		UseBrowser: useBrowser,
		Fetcher:    p.fetcher,
		LLM:        p.llm,
		Render:     p.render,
	})
}

// analyzeProperty asks the model for a PropertyAnalysis. Output that does
// not match the schema is returned as raw text alongside the error.
func (p *Pipeline) analyzeProperty(ctx context.Context, listing string) (*PropertyAnalysis, string, *llm.Usage, error) {
	resp, err := p.llm.GenerateJSON(ctx, llm.Request{
		Prompt:            llm.BuildExtractionPrompt(llm.PropertyAnalysisSchema(), listing),
		Tier:              llm.TierAdvanced,
		SystemInstruction: prompts.MustGet(prompts.PropertyFile, prompts.KeyAnalysisSystem),
	})
	if err != nil {
		return nil, "", nil, err
	}

	content := llm.CleanJSONBlock(resp.Content)
	if err := schemas.Validate(rootschemas.PropertyAnalysis, content); err != nil {
		return nil, resp.Content, resp.Usage, fmt.Errorf("analysis does not match schema: %w", err)
	}

	var analysis PropertyAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, resp.Content, resp.Usage, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, "", resp.Usage, nil
}

// AddressOf returns the first address field value, or "".
func AddressOf(fields []types.Field) string {
	for _, f := range fields {
		if f.Kind == types.KindAddress && strings.TrimSpace(f.Value) != "" {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}
