package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-battle/internal/model"
)

// RedisStore implements Store on Redis. Analyses are plain keys without
// expiry plus a set index for listing; discovery entries use native TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "battle:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) analysisKey(key string) string  { return s.prefix + "analysis:" + key }
func (s *RedisStore) indexKey() string               { return s.prefix + "analyses" }
func (s *RedisStore) discoveryKey(key string) string { return s.prefix + "discovery:" + key }

// Migrate is a no-op; Redis needs no schema.
func (s *RedisStore) Migrate(context.Context) error { return nil }

func (s *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetAnalysis(ctx context.Context, key string) (*model.AnalysisRecord, error) {
	data, err := s.client.Get(ctx, s.analysisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get analysis %s", key)
	}
	return decodeRecord(data)
}

func (s *RedisStore) PutAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "redis: marshal analysis")
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.analysisKey(rec.Key), data, 0)
		p.SAdd(ctx, s.indexKey(), rec.Key)
		return nil
	})
	return eris.Wrapf(err, "redis: put analysis %s", rec.Key)
}

func (s *RedisStore) DeleteAnalysis(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.analysisKey(key))
		p.SRem(ctx, s.indexKey(), key)
		return nil
	})
	return eris.Wrapf(err, "redis: delete analysis %s", key)
}

func (s *RedisStore) ListAnalyses(ctx context.Context) ([]model.AnalysisRecord, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list analyses")
	}
	sort.Strings(keys)

	out := make([]model.AnalysisRecord, 0, len(keys))
	for _, k := range keys {
		rec, err := s.GetAnalysis(ctx, k)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *RedisStore) GetCachedDiscovery(ctx context.Context, key string) (*model.DiscoveryCache, error) {
	data, err := s.client.Get(ctx, s.discoveryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get cached discovery %s", key)
	}
	var dc model.DiscoveryCache
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal cached discovery")
	}
	return &dc, nil
}

func (s *RedisStore) SetCachedDiscovery(ctx context.Context, key string, urls []string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.client.Del(ctx, s.discoveryKey(key)).Err()
	}
	if urls == nil {
		urls = []string{}
	}
	now := time.Now().UTC()
	data, err := json.Marshal(model.DiscoveryCache{Key: key, URLs: urls, DiscoveredAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return eris.Wrap(err, "redis: marshal discovery")
	}
	return eris.Wrapf(s.client.Set(ctx, s.discoveryKey(key), data, ttl).Err(), "redis: set cached discovery %s", key)
}
