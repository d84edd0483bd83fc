// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s\n", title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s\n", truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range items[:min(len(items), limit)] {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

// PrintCompressed outputs the fields kept by compression and the size summary.
func (p *Printer) PrintCompressed(doc *types.CompressedDocument) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	if doc.Source.URL != "" {
		sb.WriteString(fmt.Sprintf("Source:   %s\n", doc.Source.URL))
	}
	sb.WriteString(fmt.Sprintf("Size:     %d / %d %s (%.0f%% of %d)\n",
		doc.Size, doc.Budget, doc.Unit, doc.Ratio()*100, doc.OriginalSize))
	if doc.Truncated {
		sb.WriteString("Description truncated\n")
	}
	sb.WriteString("\n")

	for _, f := range doc.Fields {
		sb.WriteString(f.Line() + "\n")
	}

	p.printBox("COMPRESSED LISTING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnalysis outputs the model's assessment of a listing.
func (p *Printer) PrintAnalysis(result *analysis.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session:  %s\n", result.UUID))
	if result.Address != "" {
		sb.WriteString(fmt.Sprintf("Address:  %s\n", result.Address))
	}
	sb.WriteString("\n")

	switch a := result.Analysis; {
	case a != nil:
		if a.PropertyName != "" {
			sb.WriteString(fmt.Sprintf("Property: %s\n", a.PropertyName))
		}
		sb.WriteString(fmt.Sprintf("Price:    %s (%s)\n", a.PriceSummary, a.PriceAssessment))
		sb.WriteString(fmt.Sprintf("Location: %s\n\n", a.LocationSummary))
		writeList(&sb, "Strengths", a.Strengths, maxItemsToShow)
		writeList(&sb, "Concerns", a.Concerns, maxItemsToShow)
		sb.WriteString("\n" + a.Summary + "\n")
	case result.AnalysisText != "":
		sb.WriteString(result.AnalysisText + "\n")
	}

	p.printBox("PROPERTY ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))

	if fin := result.Financial; fin != nil && fin.Structured != nil {
		var fb strings.Builder
		fb.WriteString(fmt.Sprintf("Assessment: %s\n\n", fin.Structured.OverallAssessment))
		writeList(&fb, "Positive", fin.Structured.PositiveFactors, 3)
		writeList(&fb, "Negative", fin.Structured.NegativeFactors, 3)
		if len(fin.Structured.FinancialIndicators) > 0 {
			keys := make([]string, 0, len(fin.Structured.FinancialIndicators))
			for k := range fin.Structured.FinancialIndicators {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fb.WriteString("Indicators:\n")
			for _, k := range keys {
				fb.WriteString(fmt.Sprintf("  %s: %s\n", k, fin.Structured.FinancialIndicators[k]))
			}
		}
		p.printBox("MUNICIPAL FINANCES", strings.TrimSuffix(fb.String(), "\n"))
	}

	if flood := result.FloodRisk; flood != nil {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("Risk level: %s\n\n", flood.Assessment.OverallRiskLevel))
		writeList(&rb, "Risk factors", flood.Assessment.RiskFactors, 3)
		writeList(&rb, "Safety measures", flood.Assessment.SafetyMeasures, 3)
		p.printBox("FLOOD RISK", strings.TrimSuffix(rb.String(), "\n"))
	}

	p.PrintErrors(result.Errors)
}

// PrintErrors outputs the steps that failed during an analysis run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintErrors(errs map[string]string) {
	if len(errs) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %s\n", "✅ ALL STEPS SUCCEEDED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	steps := make([]string, 0, len(errs))
	for step := range errs {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d steps failed:\n\n", len(errs)))
	for i, step := range steps {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", step))
		sb.WriteString(fmt.Sprintf("  %s\n", truncate(errs[step], 45)))
		if i < len(steps)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("FAILED STEPS", strings.TrimSuffix(sb.String(), "\n"))
}
