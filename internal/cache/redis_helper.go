package cache

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenishment-engine/internal/config"
)

const (
	defaultCacheTTL  = time.Minute
	defaultKeyPrefix = "replenishment"
	scanBatchSize    = 100
	pingTimeout      = 5 * time.Second
)

// keyspace namespaces one cache inside a shared redis database, so several
// engine deployments and caches never see each other's keys.
type keyspace struct {
	root string
}

func newKeyspace(prefix, name string) keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	return keyspace{root: cmp.Or(prefix, defaultKeyPrefix) + ":" + name}
}

// key joins the parts below the keyspace root. Blank parts are kept as
// empty segments so positional keys stay unambiguous.
func (k keyspace) key(parts ...string) string {
	var b strings.Builder
	b.WriteString(k.root)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(p))
	}
	return b.String()
}

func (k keyspace) pattern() string {
	return k.root + ":*"
}

// purge unlinks every key of the keyspace, one scan page at a time.
func (k keyspace) purge(ctx context.Context, client *redis.Client) error {
	iter := client.Scan(ctx, 0, k.pattern(), scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink %s: %w", k.root, err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", k.root, err)
	}
	return flush()
}

// redisConn is what every redis-backed cache holds: a pinged client, its
// entry TTL and its keyspace.
type redisConn struct {
	client *redis.Client
	ttl    time.Duration
	keys   keyspace
}

func dialRedis(cfg config.CacheConfig, name string, ttlSeconds int, fallback time.Duration) (*redisConn, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed for %s cache: %w", name, err)
	}

	return &redisConn{
		client: client,
		ttl:    resolveTTL(ttlSeconds, fallback),
		keys:   newKeyspace(cfg.KeyPrefix, name),
	}, nil
}

func resolveTTL(seconds int, fallback time.Duration) time.Duration {
	if ttl := time.Duration(seconds) * time.Second; ttl > 0 {
		return ttl
	}
	if fallback > 0 {
		return fallback
	}
	return defaultCacheTTL
}

// redisOptions prefers REDIS_URL and otherwise builds the address from
// host and port.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	addr := net.JoinHostPort(cmp.Or(cfg.RedisHost, "127.0.0.1"), cmp.Or(cfg.RedisPort, "6379"))
	return &redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
