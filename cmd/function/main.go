// Package main exposes the property analyzer as Cloud Functions: the REST
// API over HTTP and a CloudEvent handler compressing listings uploaded to a
// bucket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	gcs "cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/config"
	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/server"
	"github.com/jonathan/property-analyzer/internal/storage"
)

// GCSEvent is the payload of a Cloud Storage object event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

var (
	settings      *config.Settings
	storageClient *gcs.Client
	settingsOnce  sync.Once
	settingsErr   error

	apiHandler http.Handler
	apiOnce    sync.Once
	apiErr     error
)

func init() {
	functions.HTTP("PropertyAPI", handlePropertyAPI)
	functions.CloudEvent("CompressUploadedListing", compressUploadedListing)
}

// main runs the functions locally; Cloud Functions invokes the registered
// handlers directly.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := funcframework.StartHostPort("", port); err != nil {
		slog.Error("functions framework stopped", "error", err)
		os.Exit(1)
	}
}

func loadShared(ctx context.Context) error {
	settingsOnce.Do(func() {
		settings, settingsErr = config.Load()
		if settingsErr != nil {
			return
		}
		if settingsErr = settings.Validate(); settingsErr != nil {
			return
		}
		slog.SetDefault(settings.NewLogger(os.Stdout))

		storageClient, settingsErr = gcs.NewClient(ctx)
		if settingsErr != nil {
			settingsErr = fmt.Errorf("failed to create storage client: %w", settingsErr)
		}
	})
	return settingsErr
}

func buildAPI(ctx context.Context) (http.Handler, error) {
	if err := loadShared(ctx); err != nil {
		return nil, err
	}

	cfg, err := llm.ConfigForProvider(llm.Provider(settings.LLMProvider))
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, cfg, llm.Credentials{
		ProjectID:    settings.ProjectID,
		Location:     settings.Location,
		GeminiAPIKey: settings.GeminiAPIKey,
		OpenAIAPIKey: settings.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var store *storage.Store
	if settings.BucketName != "" {
		store = storage.NewStore(storage.NewGCSBucket(storageClient, settings.BucketName), nil)
	}
	pipeline, err := analysis.New(analysis.Options{
		LLM:    client,
		Store:  store,
		Policy: settings.CompressionPolicy(),
	})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Deps{Settings: settings, LLM: client, Pipeline: pipeline, Store: store})
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}

// handlePropertyAPI serves the REST API.
func handlePropertyAPI(w http.ResponseWriter, r *http.Request) {
	apiOnce.Do(func() {
		apiHandler, apiErr = buildAPI(context.Background())
	})
	if apiErr != nil {
		slog.Error("API initialization failed", "error", apiErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	apiHandler.ServeHTTP(w, r)
}

// compressUploadedListing compresses a listing text uploaded to a bucket and
// writes the result next to it under compressed/.
func compressUploadedListing(ctx context.Context, e cloudevents.Event) error {
	if err := loadShared(ctx); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var event GCSEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	bucket := storage.NewGCSBucket(storageClient, event.Bucket)
	_, err := compressObject(ctx, bucket, event.Name, settings.CompressionPolicy())
	return err
}
