package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/observability"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [listing text or URL]",
	Short: "Run a full listing analysis",
	Long: `Ingest and compress a listing, then ask the language model for an
assessment. When the listing has an address, municipal finances and flood
risk are looked up too. Results are stored when GCS_BUCKET_NAME is set.`,
	RunE: runAnalyze,
}

var (
	analyzeInput  inputFlags
	analyzeBudget int
	analyzeJSON   bool
)

func init() {
	analyzeInput.register(analyzeCmd)
	analyzeCmd.Flags().IntVarP(&analyzeBudget, "budget", "b", 0, "Compression budget override")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query, err := readQuery(args, analyzeInput, cmd.InOrStdin())
	if err != nil {
		return err
	}

	req := analysis.Request{Query: query, UseBrowser: analyzeInput.useBrowser, Budget: analyzeBudget}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	req.UseBrowser = req.UseBrowser || settings.UseBrowser

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline := a.pipeline
	if verbose {
		stderr := cmd.ErrOrStderr()
		pipeline = pipeline.WithProgress(func(event analysis.ProgressEvent) {
			fmt.Fprintf(stderr, "→ [%s] %s\n", event.Step, event.Message)
		})
	}

	result, err := pipeline.Analyze(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		return writeJSON(out, result)
	}
	printer := observability.NewPrinter(out)
	printer.PrintCompressed(result.Compressed)
	printer.PrintAnalysis(result)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
