// Package types provides type definitions for structured data used throughout the property-analyzer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// Category groups listing fields by compression priority.
type Category string

const (
	CategoryPrice       Category = "price"
	CategoryAddress     Category = "address"
	CategorySpecs       Category = "specs"
	CategoryDescription Category = "description"
)

// DefaultPriority is the category order used when a policy does not set one.
func DefaultPriority() []Category {
	return []Category{CategoryPrice, CategoryAddress, CategorySpecs, CategoryDescription}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPrice, CategoryAddress, CategorySpecs, CategoryDescription:
		return true
	}
	return false
}

// Source describes where a listing document came from.
type Source struct {
	URL         string    `json:"url,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Platform    string    `json:"platform,omitempty"`
	Hash        string    `json:"hash,omitempty"`
}

// ListingDocument is the raw scraped text of a listing page plus its source metadata.
// Fields holds structured values that were already labeled by the scraper; the
// compressor also recovers "Label: value" lines from Text.
type ListingDocument struct {
	Text   string  `json:"text"`
	Fields []Field `json:"fields,omitempty"`
	Source Source  `json:"source"`
}

// SizeUnit selects how document size is measured against a budget.
type SizeUnit string

const (
	// UnitChars counts Unicode code points.
	UnitChars SizeUnit = "chars"
	// UnitTokens uses a deterministic token estimate.
	UnitTokens SizeUnit = "tokens"
)

// Strategy selects how description sentences are chosen once the description
// no longer fits.
type Strategy string

const (
	// StrategyLeading keeps the longest run of leading sentences.
	StrategyLeading Strategy = "leading"
	// StrategyKeyword keeps the highest scoring sentences in their original order.
	StrategyKeyword Strategy = "keyword"
)

// CompressionPolicy bounds the size of a compressed document.
type CompressionPolicy struct {
	Budget             int        `json:"budget"`
	Unit               SizeUnit   `json:"unit,omitempty"`
	Priority           []Category `json:"priority,omitempty"`
	Strategy           Strategy   `json:"strategy,omitempty"`
	Deduplicate        bool       `json:"deduplicate,omitempty"`
	DuplicateThreshold float64    `json:"duplicate_threshold,omitempty"`
}

// CompressedDocument is the budget-bounded form of a ListingDocument.
type CompressedDocument struct {
	Source       Source   `json:"source"`
	Fields       []Field  `json:"fields"`
	Description  string   `json:"description"`
	Truncated    bool     `json:"truncated"`
	OriginalSize int      `json:"original_size"`
	Size         int      `json:"size"`
	Budget       int      `json:"budget"`
	Unit         SizeUnit `json:"unit"`
}

// Text renders the document in its serialized form. Size is measured on this string.
func (c *CompressedDocument) Text() string {
	return RenderListing(c.Fields, c.Description)
}

// Listing converts the compressed document back into an input document so it
// can be compressed again.
func (c *CompressedDocument) Listing() ListingDocument {
	return ListingDocument{Text: c.Text(), Source: c.Source}
}

// Ratio returns Size/OriginalSize, or 1 for an empty original.
func (c *CompressedDocument) Ratio() float64 {
	if c.OriginalSize == 0 {
		return 1
	}
	return float64(c.Size) / float64(c.OriginalSize)
}

// RenderListing joins field lines and the description the way CompressedDocument.Text does.
func RenderListing(fields []Field, description string) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(f.Line())
	}
	if description != "" {
		if len(fields) > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(description)
	}
	return sb.String()
}
