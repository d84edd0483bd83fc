package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/property-analyzer/internal/db"
	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/types"
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a listing page into structured fields",
	Long: `Fetch a listing page, extract its main text with platform-specific
selectors and split it into labeled fields and description. Pages are
cached in Postgres when DATABASE_URL is set.`,
	RunE: runScrape,
}

var (
	scrapeURL     string
	scrapeBrowser bool
	scrapeOut     string
	scrapeNoCache bool
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeURL, "url", "u", "", "URL of the listing page (required)")
	scrapeCmd.Flags().BoolVar(&scrapeBrowser, "browser", false, "Render the page in headless Chrome")
	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "", "Output directory (default: print to stdout)")
	scrapeCmd.Flags().BoolVar(&scrapeNoCache, "no-cache", false, "Bypass the page cache")

	_ = scrapeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	newLogger(settings)
	ctx := cmd.Context()

	opts := &ingestion.Options{}
	if settings.DatabaseURL != "" && !scrapeNoCache {
		database, err := db.Connect(ctx, settings.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		opts.Fetcher = newFetcher(database)
	}

	doc, err := readListing(ctx, inputFlags{url: scrapeURL, useBrowser: scrapeBrowser || settings.UseBrowser}, nil, opts)
	if err != nil {
		return fmt.Errorf("failed to ingest from URL: %w", err)
	}

	if scrapeOut == "" {
		return writeJSON(cmd.OutOrStdout(), doc)
	}
	return writeScrapeOutput(scrapeOut, doc, cmd)
}

// writeScrapeOutput writes listing.txt (fields and description) and
// listing.json (the full document) into dir.
func writeScrapeOutput(dir string, doc *types.ListingDocument, cmd *cobra.Command) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	textPath := filepath.Join(dir, "listing.txt")
	if err := os.WriteFile(textPath, []byte(types.RenderListing(doc.Fields, doc.Text)), 0o644); err != nil {
		return fmt.Errorf("failed to write listing text: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}
	jsonPath := filepath.Join(dir, "listing.json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write listing JSON: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Successfully scraped listing (%d fields)\n", len(doc.Fields))
	fmt.Fprintf(out, "Text: %s\n", textPath)
	fmt.Fprintf(out, "Document: %s\n", jsonPath)
	return nil
}
