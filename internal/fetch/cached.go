// Package fetch provides generic URL fetching with optional caching.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/property-analyzer/internal/db"
	"golang.org/x/sync/errgroup"
)

// PageCache is the subset of *db.DB the cached fetcher needs.
type PageCache interface {
	ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error)
	GetFreshCrawledPage(ctx context.Context, pageURL string, maxAge time.Duration) (*db.CrawledPage, error)
	UpsertCrawledPage(ctx context.Context, page *db.CrawledPage) error
	RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error
	ExpireCrawledPage(ctx context.Context, pageURL string) error
}

// CachedFetcher wraps URL fetching with database-backed caching.
type CachedFetcher struct {
	cache     PageCache
	options   *Options
	cacheTTL  time.Duration
	skipCache bool // For testing or forcing fresh fetches
	parallel  int
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	// Parallel bounds concurrent fetches in FetchMultiple.
	Parallel int
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:  db.DefaultPageCacheTTL, // 7 days
		SkipCache: false,
		Options:   DefaultOptions(),
		Parallel:  4,
	}
}

// NewCachedFetcher creates a new cached fetcher. A nil cache fetches
// without caching.
func NewCachedFetcher(cache PageCache, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = db.DefaultPageCacheTTL
	}
	if config.Parallel <= 0 {
		config.Parallel = 4
	}
	return &CachedFetcher{
		cache:     cache,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		parallel:  config.Parallel,
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool      // Whether this result came from cache
	PageID    uuid.UUID // Database ID of the cached page
}

func (f *CachedFetcher) cacheEnabled() bool {
	return !f.skipCache && f.cache != nil
}

// Fetch retrieves a URL, using cache if available and fresh.
// Returns cached content if within TTL, otherwise fetches fresh content,
// extracts the listing text with platform selectors, and caches it.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	platform := DetectPlatform(urlStr)
	log := slog.With("url", urlStr, "platform", platform)

	if f.cacheEnabled() {
		shouldSkip, reason, err := f.cache.ShouldSkipURL(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to check skip status: %w", err)
		}
		if shouldSkip {
			return nil, &Error{
				URL:       urlStr,
				Message:   fmt.Sprintf("URL skipped: %s", reason),
				Retryable: false,
			}
		}

		cached, err := f.cache.GetFreshCrawledPage(ctx, urlStr, f.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache: %w", err)
		}
		if cached != nil {
			log.DebugContext(ctx, "page cache hit")
			return &CachedResult{
				Result: &Result{
					URL:        cached.URL,
					HTML:       derefString(cached.RawHTML),
					Text:       derefString(cached.ParsedText),
					StatusCode: derefInt(cached.HTTPStatus),
					Platform:   platform,
				},
				FromCache: true,
				PageID:    cached.ID,
			}, nil
		}
	}

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		if f.cacheEnabled() {
			statusCode := 0
			if result != nil {
				statusCode = result.StatusCode
			}
			if recErr := f.cache.RecordFailedFetch(ctx, urlStr, statusCode, err.Error()); recErr != nil {
				log.WarnContext(ctx, "failed to record fetch failure", "error", recErr)
			}
		}
		return nil, err
	}

	text, err := ExtractMainText(result.HTML, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
	}
	result.Text = text

	out := &CachedResult{Result: result}
	if f.cacheEnabled() {
		platformName := string(platform)
		page := &db.CrawledPage{
			URL:         urlStr,
			Platform:    &platformName,
			RawHTML:     &result.HTML,
			ParsedText:  &result.Text,
			HTTPStatus:  &result.StatusCode,
			FetchStatus: db.FetchStatusSuccess,
		}
		// The fetch succeeded; a cache write failure only costs a refetch
		if err := f.cache.UpsertCrawledPage(ctx, page); err != nil {
			log.WarnContext(ctx, "failed to cache page", "error", err)
		} else {
			out.PageID = page.ID
		}
	}

	return out, nil
}

// FetchMultiple fetches multiple URLs concurrently with caching.
// Returns results in the same order as input URLs. Failed fetches are nil in the result slice.
func (f *CachedFetcher) FetchMultiple(ctx context.Context, urls []string) ([]*CachedResult, []error) {
	results := make([]*CachedResult, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(f.parallel)
	for i, u := range urls {
		g.Go(func() error {
			results[i], errs[i] = f.Fetch(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// InvalidateCache marks a cached page as stale, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(ctx context.Context, urlStr string) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.ExpireCrawledPage(ctx, urlStr)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
