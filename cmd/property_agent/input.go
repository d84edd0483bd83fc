package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/types"
	"github.com/spf13/cobra"
)

// errNoInput is returned when no listing was given on any channel.
var errNoInput = errors.New("provide a listing with --file, --url or on stdin")

// inputFlags selects where a listing is read from.
type inputFlags struct {
	file       string
	url        string
	useBrowser bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Path to a text file containing the listing")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "URL of the listing page")
	cmd.Flags().BoolVar(&f.useBrowser, "browser", false, "Render the page in headless Chrome")
}

func (f *inputFlags) validate() error {
	if f.file != "" && f.url != "" {
		return fmt.Errorf("--file and --url are mutually exclusive; provide only one")
	}
	return nil
}

// readListing ingests the listing from the file, the URL or stdin, in that
// order of preference.
func readListing(ctx context.Context, in inputFlags, stdin io.Reader, opts *ingestion.Options) (*types.ListingDocument, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	switch {
	case in.file != "":
		return ingestion.IngestFromFile(in.file)
	case in.url != "":
		if opts == nil {
			opts = &ingestion.Options{}
		}
		opts.UseBrowser = in.useBrowser
		return ingestion.IngestFromURL(ctx, in.url, opts)
	}

	text, err := readStdin(stdin)
	if err != nil {
		return nil, err
	}
	return ingestion.IngestFromText(text, ingestion.FindURL(text)), nil
}

// readQuery returns the analysis query from arguments, --file, --url or
// stdin. A URL query is analyzed by fetching the page.
func readQuery(args []string, in inputFlags, stdin io.Reader) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}

	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case in.file != "":
		data, err := os.ReadFile(in.file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	case in.url != "":
		return in.url, nil
	}
	return readStdin(stdin)
}

func readStdin(stdin io.Reader) (string, error) {
	if stdin == nil {
		return "", errNoInput
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errNoInput
	}
	return string(data), nil
}
