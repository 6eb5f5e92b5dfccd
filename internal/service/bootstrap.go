package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenishment-engine/internal/cache"
	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/metrics"
	"github.com/andresuchdata/replenishment-engine/internal/repository/postgres"
	"github.com/andresuchdata/replenishment-engine/internal/storage"
)

// NewFromConfig assembles the service on top of a database handle: redis
// caches when enabled, the object storage archive when enabled, and the
// process-wide metrics. Cache or storage failures degrade to running
// without them.
func NewFromConfig(ctx context.Context, cfg *config.Config, db *postgres.DB) (*ReplenishmentService, error) {
	opts := Options{Metrics: metrics.Engine()}

	patterns, err := cache.NewSeasonalPatternCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("seasonal pattern cache unavailable, continuing without it")
	} else {
		opts.Patterns = patterns
	}

	summaries, err := cache.NewJobSummaryCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("job summary cache unavailable, continuing without it")
	} else {
		opts.Summaries = summaries
	}

	if archive, err := NewArchive(ctx, cfg.Storage); err != nil {
		log.Warn().Err(err).Msg("job result archive unavailable, continuing without it")
	} else if archive != nil {
		opts.Archive = archive
	}

	svc, err := NewReplenishmentService(cfg, NewPostgresRepositories(db), opts)
	if err != nil {
		return nil, fmt.Errorf("build replenishment service: %w", err)
	}
	return svc, nil
}

// NewArchive connects the job result archive. It returns nil when storage
// is disabled.
func NewArchive(ctx context.Context, cfg config.StorageConfig) (*storage.JobArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := storage.NewMinioClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewJobArchive(client, cfg.Prefix), nil
}
