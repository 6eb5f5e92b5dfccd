package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisPassword: "secret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions(config.CacheConfig{RedisURL: "redis://cache:6380/1"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = redisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestResolveTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, resolveTTL(30, time.Hour))
	assert.Equal(t, time.Hour, resolveTTL(0, time.Hour))
	assert.Equal(t, defaultCacheTTL, resolveTTL(-5, 0))
}

func TestKeyspace(t *testing.T) {
	ks := newKeyspace("", seasonalPatternKeyspace)
	assert.Equal(t, "replenishment:seasonal_pattern:p1:s1", ks.key("p1", " s1 "))
	assert.Equal(t, "replenishment:seasonal_pattern:*", ks.pattern())

	ks = newKeyspace(" staging: ", jobSummaryKeyspace)
	assert.Equal(t, "staging:job_results:recent:default", ks.key("recent", "default"))
	assert.Equal(t, "staging:job_results:p1::x", ks.key("p1", "", "x"))
}

func TestJobSummaryKey(t *testing.T) {
	ks := newKeyspace("replenishment", jobSummaryKeyspace)
	assert.Equal(t, "replenishment:job_results:recent:default", jobSummaryKey(ks, JobResultFilter{}))

	nightly := jobSummaryKey(ks, JobResultFilter{JobType: domain.JobTypeNightly, Limit: 10})
	assert.Equal(t, nightly, jobSummaryKey(ks, JobResultFilter{JobType: "NIGHTLY", Limit: 10}))
	assert.NotEqual(t, nightly, jobSummaryKey(ks, JobResultFilter{JobType: domain.JobTypeNightly, Limit: 20}))
	assert.Contains(t, nightly, "replenishment:job_results:recent:")
	assert.NotEqual(t, nightly, jobSummaryKey(newKeyspace("staging", jobSummaryKeyspace), JobResultFilter{JobType: domain.JobTypeNightly, Limit: 10}))
}

func TestDisabledCachesAreNoop(t *testing.T) {
	ctx := context.Background()

	patterns, err := NewSeasonalPatternCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, patterns.Set(ctx, &domain.SeasonalPattern{ProductID: "p1", StoreID: "s1"}))
	_, ok, err := patterns.Get(ctx, "p1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	jobs, err := NewJobSummaryCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, jobs.SetRecent(ctx, JobResultFilter{}, []domain.ScheduledJobResult{{ID: "r1"}}))
	_, ok, err = jobs.GetRecent(ctx, JobResultFilter{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, jobs.InvalidateAll(ctx))
}

func TestDecodePatternRoundTrip(t *testing.T) {
	_, err := decodePattern([]byte("not-json"))
	assert.Error(t, err)

	p, err := decodePattern([]byte(`{"product_id":"p1","store_id":"s1","weekly":[1,1,1,1,1,2,2],"fingerprint":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Weekly[6])
	assert.Equal(t, "abc", p.Fingerprint)
}
