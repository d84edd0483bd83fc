// Package fetch provides listing page fetching and HTML-to-text processing.
// This package centralizes HTTP fetching logic used by ingestion.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is a desktop browser UA; listing portals serve reduced
// pages to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 10 << 20

// Result holds the raw and processed content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
	Platform    Platform
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a fetch error worth retrying.
func IsRetryable(err error) bool {
	var fetchErr *Error
	return errors.As(err, &fetchErr) && fetchErr.Retryable
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int
	// RetryDelay is the first back-off delay; it doubles per attempt.
	RetryDelay time.Duration
	Client     *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:    DefaultTimeout,
		UserAgent:  DefaultUserAgent,
		Headers:    map[string]string{"Accept-Language": "ja,en;q=0.8"},
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
	}
}

// URL retrieves HTML content from a URL, retrying transient failures with
// exponential back-off.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	delay := opts.RetryDelay
	for attempt := 0; ; attempt++ {
		result, err := fetchOnce(ctx, urlStr, opts)
		if err == nil || !IsRetryable(err) || attempt >= opts.MaxRetries {
			return result, err
		}

		slog.WarnContext(ctx, "fetch failed, retrying",
			"url", urlStr, "attempt", attempt+1, "max_retries", opts.MaxRetries, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return result, &Error{URL: urlStr, Message: "cancelled during retry", Cause: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func fetchOnce(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "HTTP request failed",
			Retryable: ctx.Err() == nil,
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")

	// Japanese portals still serve Shift_JIS and EUC-JP pages
	body, err := charset.NewReader(io.LimitReader(resp.Body, MaxBodyBytes), contentType)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "unsupported charset",
			Cause:   err,
		}
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "failed to read response body",
			Retryable: true,
			Cause:     err,
		}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		Platform:    DetectPlatform(urlStr),
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	return result, nil
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using contentSelectors.
// If no content selectors match, it falls back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, aside, iframe, script, style, noscript, .ad, .ads, .sidebar").Remove()
	doc.Find(strings.Join(boilerplateClassSelectors, ", ")).Remove()

	if len(noiseSelectors) > 0 {
		noiseSelector := strings.Join(noiseSelectors, ", ")
		if noiseSelector != "" {
			doc.Find(noiseSelector).Remove()
		}
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}

	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	text := blockText(mainContent)
	text = cleanWhitespace(text)

	return text, nil
}

// boilerplateClassSelectors match elements whose class mentions common
// page chrome.
var boilerplateClassSelectors = []string{
	"[class*='advertisement']",
	"[class*='banner']",
	"[class*='popup']",
	"[class*='modal']",
	"[class*='cookie']",
	"[class*='privacy']",
}

// blockText returns the selection's text with a line break after each
// block-level element, so table cells and list items stay on their own lines.
func blockText(sel *goquery.Selection) string {
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("p, div, li, tr, th, td, dt, dd, h1, h2, h3, h4, h5, h6, section").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return sel.Text()
}

// DefaultTextSelectors returns standard selectors for general web content.
func DefaultTextSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".main-content",
		"#main-content",
	}
}

// ListingSelectors returns selectors common to property listing pages.
func ListingSelectors() []string {
	return []string{
		".property-detail",
		".bukken-detail",
		"#property-detail",
		"[itemtype*='Residence']",
		"[itemtype*='Product']",
		"main",
		"article",
		".content",
		"#content",
	}
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
