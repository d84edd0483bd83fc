package main

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"

	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/storage"
	"github.com/jonathan/property-analyzer/internal/types"
)

// compressedPrefix holds compressed outputs; objects under it are not
// compressed again.
const compressedPrefix = "compressed/"

// compressObject compresses the text object name and writes it to
// compressed/<name>. It returns the output name, or "" when the object was
// skipped. An existing output is left untouched.
func compressObject(ctx context.Context, bucket storage.Bucket, name string, policy types.CompressionPolicy) (string, error) {
	log := slog.With("gcsBucket", bucket.Name(), "gcsObject", name)

	if strings.HasPrefix(name, compressedPrefix) || path.Ext(name) != ".txt" {
		log.Info("Skipping object")
		return "", nil
	}

	data, err := bucket.Read(ctx, name)
	if err != nil {
		log.Error("Failed to read object", "error", err)
		return "", err
	}

	doc := ingestion.IngestFromText(string(data), ingestion.FindURL(string(data)))
	compressed, err := compression.Compress(*doc, policy)
	var emptyErr *compression.EmptyInputError
	if errors.As(err, &emptyErr) {
		log.Warn("Listing is empty; nothing to compress")
		return "", nil
	}
	if err != nil {
		log.Error("Failed to compress listing", "error", err)
		return "", err
	}

	out := compressedPrefix + name
	if err := bucket.Write(ctx, out, []byte(compressed.Text()), "text/plain; charset=utf-8"); err != nil {
		if errors.Is(err, storage.ErrObjectExists) {
			log.Info("Compressed listing already exists", "output", out)
			return out, nil
		}
		log.Error("Failed to write compressed listing", "error", err)
		return "", err
	}

	log.Info("Compressed listing",
		"output", out, "size", compressed.Size, "original_size", compressed.OriginalSize, "truncated", compressed.Truncated)
	return out, nil
}
