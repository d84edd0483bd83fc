package ingestion

import (
	"time"

	"github.com/jonathan/property-analyzer/internal/db"
	"github.com/jonathan/property-analyzer/internal/types"
)

// NewSource records where content came from. The hash covers the cleaned
// text so the same listing scraped twice hashes the same.
func NewSource(content, url, platform string) types.Source {
	return types.Source{
		URL:         url,
		RetrievedAt: time.Now().UTC(),
		Platform:    platform,
		Hash:        db.HashContent(content),
	}
}
