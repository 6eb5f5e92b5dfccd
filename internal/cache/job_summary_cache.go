package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const jobSummaryKeyspace = "job_results"

// JobResultFilter selects a page of recent job results.
type JobResultFilter struct {
	JobType domain.JobType
	Limit   int
}

// JobSummaryCache caches the recent job result listing served by the API.
// Every completed run invalidates it.
type JobSummaryCache interface {
	GetRecent(ctx context.Context, filter JobResultFilter) ([]domain.ScheduledJobResult, bool, error)
	SetRecent(ctx context.Context, filter JobResultFilter, results []domain.ScheduledJobResult) error
	InvalidateAll(ctx context.Context) error
}

type redisJobSummaryCache struct {
	*redisConn
}

type noopJobSummaryCache struct{}

func NewJobSummaryCache(cfg config.CacheConfig) (JobSummaryCache, error) {
	if !cfg.Enabled {
		return &noopJobSummaryCache{}, nil
	}

	conn, err := dialRedis(cfg, jobSummaryKeyspace, cfg.SummaryTTLSeconds, defaultCacheTTL)
	if err != nil {
		return nil, err
	}
	return &redisJobSummaryCache{redisConn: conn}, nil
}

func NewNoopJobSummaryCache() JobSummaryCache {
	return &noopJobSummaryCache{}
}

func (c *redisJobSummaryCache) GetRecent(ctx context.Context, filter JobResultFilter) ([]domain.ScheduledJobResult, bool, error) {
	payload, err := c.client.Get(ctx, jobSummaryKey(c.keys, filter)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var results []domain.ScheduledJobResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, false, fmt.Errorf("decode job summary cache: %w", err)
	}
	return results, true, nil
}

func (c *redisJobSummaryCache) SetRecent(ctx context.Context, filter JobResultFilter, results []domain.ScheduledJobResult) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode job summary cache: %w", err)
	}

	if err := c.client.Set(ctx, jobSummaryKey(c.keys, filter), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisJobSummaryCache) InvalidateAll(ctx context.Context) error {
	return c.keys.purge(ctx, c.client)
}

func (n *noopJobSummaryCache) GetRecent(ctx context.Context, filter JobResultFilter) ([]domain.ScheduledJobResult, bool, error) {
	return nil, false, nil
}

func (n *noopJobSummaryCache) SetRecent(ctx context.Context, filter JobResultFilter, results []domain.ScheduledJobResult) error {
	return nil
}

func (n *noopJobSummaryCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// jobSummaryKey hashes the filter so every page has its own entry.
func jobSummaryKey(keys keyspace, filter JobResultFilter) string {
	var parts []string
	if filter.JobType != "" {
		parts = append(parts, "job_type="+strings.ToLower(string(filter.JobType)))
	}
	if filter.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", filter.Limit))
	}

	if len(parts) == 0 {
		return keys.key("recent", "default")
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return keys.key("recent", hex.EncodeToString(hash[:]))
}
