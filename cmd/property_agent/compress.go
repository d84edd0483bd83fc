package main

import (
	"fmt"

	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/observability"
	"github.com/jonathan/property-analyzer/internal/types"
	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Compress a listing to a size budget",
	Long: `Compress a listing so that it fits a character or token budget.
Price, address and building detail fields are kept verbatim; the description is cut
to whole sentences. No language model is called.`,
	RunE: runCompress,
}

type compressOptions struct {
	input    inputFlags
	budget   int
	unit     string
	strategy string
	dedup    bool
	asJSON   bool
}

var compressFlags compressOptions

func init() {
	compressFlags.input.register(compressCmd)
	compressCmd.Flags().IntVarP(&compressFlags.budget, "budget", "b", 0, "Size budget (default from MAX_TEXT_LENGTH * COMPRESSION_RATIO)")
	compressCmd.Flags().StringVar(&compressFlags.unit, "unit", "", "Size unit: chars or tokens")
	compressCmd.Flags().StringVar(&compressFlags.strategy, "strategy", "", "Sentence selection: leading or keyword")
	compressCmd.Flags().BoolVar(&compressFlags.dedup, "dedup", false, "Drop near-duplicate description sentences")
	compressCmd.Flags().BoolVar(&compressFlags.asJSON, "json", false, "Print the compressed document as JSON")

	rootCmd.AddCommand(compressCmd)
}

// compressionPolicy overlays command flags on the configured policy.
func (o compressOptions) compressionPolicy(base types.CompressionPolicy) (types.CompressionPolicy, error) {
	policy := base
	if o.budget > 0 {
		policy.Budget = o.budget
	}
	if o.unit != "" {
		policy.Unit = types.SizeUnit(o.unit)
	}
	if o.strategy != "" {
		policy.Strategy = types.Strategy(o.strategy)
	}
	if o.dedup {
		policy.Deduplicate = true
	}
	return policy, compression.ValidatePolicy(policy)
}

func runCompress(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	newLogger(settings)

	policy, err := compressFlags.compressionPolicy(settings.CompressionPolicy())
	if err != nil {
		return err
	}

	doc, err := readListing(cmd.Context(), compressFlags.input, cmd.InOrStdin(), &ingestion.Options{})
	if err != nil {
		return err
	}

	compressed, err := compression.Compress(*doc, policy)
	if err != nil {
		return err
	}

	if verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintCompressed(compressed)
	}

	out := cmd.OutOrStdout()
	if compressFlags.asJSON {
		return writeJSON(out, compressed)
	}
	_, err = fmt.Fprintln(out, compressed.Text())
	return err
}
