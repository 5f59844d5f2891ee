// Package app assembles the pipeline and its collaborators from configuration.
// Both the HTTP server and the batch CLI start from Build.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"bloodagent/internal/anonymize"
	"bloodagent/internal/config"
	"bloodagent/internal/convert"
	"bloodagent/internal/domain"
	"bloodagent/internal/extract"
	"bloodagent/internal/loinc"
	"bloodagent/internal/port"
	"bloodagent/internal/provider"
	"bloodagent/internal/repository/memory"
	"bloodagent/internal/repository/postgres"
	"bloodagent/internal/service"
	s3storage "bloodagent/internal/storage/s3"

	// Model backends register themselves with the provider registry.
	_ "bloodagent/internal/provider/claude"
	_ "bloodagent/internal/provider/gemini"
	_ "bloodagent/internal/provider/openai"
)

// App holds the wired pipeline.
type App struct {
	Pipeline  service.PipelineService
	Artifacts *service.ArtifactStore
	Validator *loinc.Validator
	// DB is nil when results are kept in memory.
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Build connects storage backends, loads the LOINC table and constructs the controller.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	var results port.ResultRepository
	var loincRepo port.LOINCRepository
	if cfg.DB.Enabled {
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		results = postgres.NewResultRepo(db)
		loincRepo = postgres.NewLOINCRepo(db)
	} else {
		results = memory.NewResultRepo()
	}

	var opts []service.ControllerOption
	if cfg.S3.Enabled {
		store, err := s3storage.NewStore(ctx, &cfg.S3)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		if err := store.EnsureBucket(ctx, cfg.S3.SilverBucket); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.S3.SilverBucket, err)
		}
		a.Artifacts = service.NewArtifactStore(store, cfg.S3.SilverBucket, cfg.S3.PresignExpiry)
		opts = append(opts, service.WithArtifacts(a.Artifacts))
	}

	table, err := loinc.Load(ctx, cfg.LOINC, loincRepo)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load LOINC table: %w", err)
	}
	slog.Info("loinc.table.loaded", "source", cfg.LOINC.Source, "entries", table.Len())

	anonymizer, err := anonymize.NewAnonymizer(cfg.Anonymize)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Validator = loinc.NewValidator(table, cfg.LOINC.FuzzyThreshold)
	stages := service.Stages{
		Extractor:  extract.NewExtractor(cfg.Pipeline),
		Anonymizer: anonymizer,
		Converter:  convert.NewConverter(),
		Validator:  a.Validator,
	}

	a.Pipeline = service.NewPipelineController(stages, ClientFactory(&cfg.Provider), results, service.ControllerConfig{
		Concurrency:   cfg.Pipeline.Concurrency,
		StageTimeout:  cfg.Pipeline.StageTimeout,
		DefaultPrompt: cfg.Pipeline.DefaultPrompt,
	}, opts...)
	return a, nil
}

// ClientFactory builds model clients from the provider registry.
func ClientFactory(cfg *config.ProviderConfig) service.ClientFactory {
	return func(model domain.ModelConfig) (port.ProviderClient, error) {
		client, err := provider.NewClient(model, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
