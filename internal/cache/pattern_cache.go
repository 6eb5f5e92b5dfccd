package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const (
	seasonalPatternKeyspace = "seasonal_pattern"
	defaultPatternTTL       = 24 * time.Hour
)

// SeasonalPatternCache stores detected seasonal patterns per product and
// store so repeated forecasts skip detection. Entries carry the history
// fingerprint they were detected from; callers discard stale ones.
type SeasonalPatternCache interface {
	Get(ctx context.Context, productID, storeID string) (*domain.SeasonalPattern, bool, error)
	Set(ctx context.Context, pattern *domain.SeasonalPattern) error
}

type redisPatternCache struct {
	*redisConn
}

type noopPatternCache struct{}

func NewSeasonalPatternCache(cfg config.CacheConfig) (SeasonalPatternCache, error) {
	if !cfg.Enabled {
		return &noopPatternCache{}, nil
	}

	conn, err := dialRedis(cfg, seasonalPatternKeyspace, cfg.PatternTTLSeconds, defaultPatternTTL)
	if err != nil {
		return nil, err
	}
	return &redisPatternCache{redisConn: conn}, nil
}

func NewNoopSeasonalPatternCache() SeasonalPatternCache {
	return &noopPatternCache{}
}

func (c *redisPatternCache) Get(ctx context.Context, productID, storeID string) (*domain.SeasonalPattern, bool, error) {
	payload, err := c.client.Get(ctx, c.keys.key(productID, storeID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	pattern, err := decodePattern(payload)
	if err != nil {
		return nil, false, err
	}
	return pattern, true, nil
}

func (c *redisPatternCache) Set(ctx context.Context, pattern *domain.SeasonalPattern) error {
	if pattern == nil {
		return nil
	}
	payload, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("encode seasonal pattern cache: %w", err)
	}

	key := c.keys.key(pattern.ProductID, pattern.StoreID)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopPatternCache) Get(ctx context.Context, productID, storeID string) (*domain.SeasonalPattern, bool, error) {
	return nil, false, nil
}

func (n *noopPatternCache) Set(ctx context.Context, pattern *domain.SeasonalPattern) error {
	return nil
}

func decodePattern(payload []byte) (*domain.SeasonalPattern, error) {
	var pattern domain.SeasonalPattern
	if err := json.Unmarshal(payload, &pattern); err != nil {
		return nil, fmt.Errorf("decode seasonal pattern cache: %w", err)
	}
	return &pattern, nil
}
