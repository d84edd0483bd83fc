package ingestion

import (
	"net/url"
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

var webURLs = mustWebURLs()

func mustWebURLs() *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		panic(err)
	}
	return re
}

// IsURL reports whether text is exactly one absolute http(s) URL.
func IsURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return false
	}
	parsed, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// FindURL returns the first http(s) URL in free text, or "".
// Full-width punctuation right after a URL is not part of it.
func FindURL(text string) string {
	found := webURLs.FindString(text)
	if i := strings.IndexAny(found, "、。」）"); i >= 0 {
		found = found[:i]
	}
	return found
}
