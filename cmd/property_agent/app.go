package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/config"
	"github.com/jonathan/property-analyzer/internal/db"
	"github.com/jonathan/property-analyzer/internal/fetch"
	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/reasoning"
	"github.com/jonathan/property-analyzer/internal/search"
	"github.com/jonathan/property-analyzer/internal/storage"
)

// loadSettings reads the environment, overlays the JSON file at path when
// given, and validates the result.
func loadSettings(path string) (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path != "" {
		fileSettings, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		merged := fileSettings.MergeWithDefaults(*settings)
		settings = &merged
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// app holds the collaborators built from settings. Optional backends are
// nil when their settings are empty.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	llm      llm.Client
	database *db.DB
	fetcher  *fetch.CachedFetcher
	store    *storage.Store
	search   *search.Service
	flood    *reasoning.Client
	pipeline *analysis.Pipeline
	closers  []func()
}

func newLogger(settings *config.Settings) *slog.Logger {
	logger := settings.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// llmConfig maps settings onto the provider defaults.
func llmConfig(settings *config.Settings) (*llm.Config, error) {
	cfg, err := llm.ConfigForProvider(llm.Provider(settings.LLMProvider))
	if err != nil {
		return nil, err
	}
	if settings.DefaultModel != "" && cfg.Provider != llm.ProviderOpenAI {
		cfg = cfg.WithModel(llm.TierStandard, settings.DefaultModel)
	}
	cfg.Generation = cfg.Generation.Merge(&llm.GenerationConfig{
		MaxOutputTokens: int32(settings.MaxTokens),
		Temperature:     llm.Ptr(float32(settings.Temperature)),
		TopP:            llm.Ptr(float32(settings.TopP)),
		TopK:            llm.Ptr(int32(settings.TopK)),
	})
	return cfg, nil
}

// newApp connects every configured backend. Close releases them.
func newApp(ctx context.Context, settings *config.Settings) (*app, error) {
	a := &app{settings: settings, logger: newLogger(settings)}

	cfg, err := llmConfig(settings)
	if err != nil {
		return nil, err
	}
	a.llm, err = llm.NewClient(ctx, cfg, llm.Credentials{
		ProjectID:    settings.ProjectID,
		Location:     settings.Location,
		GeminiAPIKey: settings.GeminiAPIKey,
		OpenAIAPIKey: settings.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.llm.Close() })

	if err := a.connectOptional(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline, err = analysis.New(analysis.Options{
		LLM:     a.llm,
		Search:  optional[analysis.FinancialSearcher](a.search),
		Flood:   optional[analysis.FloodAnalyzer](a.flood),
		Store:   a.store,
		Policy:  settings.CompressionPolicy(),
		Fetcher: a.fetcher,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// optional converts a possibly nil pointer to an interface that is nil too.
func optional[I any, T any](v *T) I {
	var zero I
	if v == nil {
		return zero
	}
	return any(v).(I)
}

func (a *app) connectOptional(ctx context.Context) error {
	s := a.settings

	if s.DatabaseURL != "" {
		database, err := db.Connect(ctx, s.DatabaseURL)
		if err != nil {
			return err
		}
		a.database = database
		a.closers = append(a.closers, database.Close)
	}
	a.fetcher = newFetcher(a.database)

	if s.BucketName != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })

		var index storage.SessionIndex
		if s.FirestoreCollection != "" {
			fs, err := firestore.NewClient(ctx, s.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to create firestore client: %w", err)
			}
			a.closers = append(a.closers, func() { _ = fs.Close() })
			index = storage.NewFirestoreIndex(fs, s.FirestoreCollection)
		}
		a.store = storage.NewStore(storage.NewGCSBucket(client, s.BucketName), index)
	}

	if s.SearchDataStoreID != "" {
		searchCfg := search.Config{
			ProjectID:       s.ProjectID,
			Location:        s.SearchLocation,
			DataStoreID:     s.SearchDataStoreID,
			ServingConfigID: s.SearchServingConfigID,
		}
		backend, err := search.NewDiscoveryBackend(ctx, searchCfg)
		if err != nil {
			return err
		}
		a.search, err = search.NewService(backend, searchCfg)
		if err != nil {
			return err
		}
	}

	if s.ReasoningEngineID != "" {
		flood, err := reasoning.NewClient(ctx, reasoning.Config{
			ProjectID: s.ProjectID,
			Location:  s.ReasoningEngineLocation,
			EngineID:  s.ReasoningEngineID,
		})
		if err != nil {
			return err
		}
		a.flood = flood
	}

	a.logger.Info("backends configured",
		"provider", s.LLMProvider,
		"database", a.database != nil,
		"storage", a.store != nil,
		"search", a.search != nil,
		"flood_risk", a.flood != nil)
	return nil
}

// newFetcher returns a page-cached fetcher when a database is available.
func newFetcher(database *db.DB) *fetch.CachedFetcher {
	if database == nil {
		return nil
	}
	return fetch.NewCachedFetcher(database, nil)
}

// Close releases backends in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
