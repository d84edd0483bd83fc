package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonathan/property-analyzer/internal/fetch"
	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/types"
)

var (
	// ErrInvalidURL is returned when URL is malformed
	ErrInvalidURL = errors.New("invalid URL")
	// ErrHTTPRequestFailed is returned when HTTP request fails
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when content extraction fails
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// Options configures URL ingestion.
type Options struct {
	// UseBrowser enables headless rendering for JS-rendered pages.
	UseBrowser bool
	// Fetcher, when set, serves pages from the page cache.
	Fetcher *fetch.CachedFetcher
	// FetchOptions is used when Fetcher is nil.
	FetchOptions *fetch.Options
	// LLM, when set, recovers fields from pages that carry no labeled ones.
	LLM llm.Client
	// Render overrides headless rendering; tests use it.
	Render func(ctx context.Context, url string) (string, error)
}

// IngestFromURL fetches a listing page, extracts its main text with
// platform-specific selectors, falls back to headless rendering when the
// page is a script shell, and splits the result into fields and description.
func IngestFromURL(ctx context.Context, urlStr string, opts *Options) (*types.ListingDocument, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !IsURL(urlStr) {
		return nil, ErrInvalidURL
	}

	platform := fetch.DetectPlatform(urlStr)
	log := slog.With("url", urlStr, "platform", platform)
	contentSelectors := fetch.PlatformContentSelectors(platform)
	noiseSelectors := fetch.PlatformNoiseSelectors(platform)

	var textContent string
	if opts.Fetcher != nil {
		result, err := opts.Fetcher.Fetch(ctx, urlStr)
		if err != nil {
			return nil, errors.Join(ErrHTTPRequestFailed, err)
		}
		textContent = result.Text
		log.DebugContext(ctx, "fetched page", "from_cache", result.FromCache, "chars", len(textContent))
	} else {
		result, err := fetch.URL(ctx, urlStr, opts.FetchOptions)
		if err != nil {
			return nil, errors.Join(ErrHTTPRequestFailed, err)
		}
		textContent, err = fetch.ExtractMainText(result.HTML, contentSelectors, noiseSelectors...)
		if err != nil {
			return nil, errors.Join(ErrContentExtractionFailed, err)
		}
		log.DebugContext(ctx, "fetched page", "html_bytes", len(result.HTML), "chars", len(textContent))
	}

	if opts.UseBrowser && (fetch.RequiresBrowser(platform) || fetch.ShouldUseBrowser(textContent)) {
		render := opts.Render
		if render == nil {
			render = fetch.BrowserSimple
		}
		log.InfoContext(ctx, "falling back to browser rendering", "chars", len(textContent))
		browserHTML, err := render(ctx, urlStr)
		if err != nil {
			// The HTTP content is still usable
			log.WarnContext(ctx, "browser rendering failed", "error", err)
		} else if rendered, err := fetch.ExtractMainText(browserHTML, contentSelectors, noiseSelectors...); err != nil {
			log.WarnContext(ctx, "browser content extraction failed", "error", err)
		} else if len(rendered) > len(textContent) {
			textContent = rendered
		}
	}

	cleaned := RemoveNoise(CleanText(textContent))
	if cleaned == "" {
		return nil, ErrContentExtractionFailed
	}

	fields, description := SplitFields(cleaned)
	if len(fields) == 0 && opts.LLM != nil {
		extracted, err := ExtractFieldsWithLLM(ctx, opts.LLM, cleaned)
		if err != nil {
			log.WarnContext(ctx, "LLM field extraction failed", "error", err)
		} else {
			fields = extracted
		}
	}

	log.InfoContext(ctx, "ingested listing", "fields", len(fields), "chars", len([]rune(description)))
	return &types.ListingDocument{
		Text:   description,
		Fields: fields,
		Source: NewSource(cleaned, urlStr, string(platform)),
	}, nil
}
