package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes every Redis cache key.
const DefaultKeyPrefix = "triad:cache"

// RedisStore keeps entries in Redis.
//
// Redis data structure:
//   - Key: "{prefix}:{user_id}:{personality}:{session_type}"
//   - Type: Sorted Set (ZSET)
//   - Score: write time in unix milliseconds
//   - Member: JSON(Entry)
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a store over an existing client. ttl of 0 disables
// key expiry.
func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store.
func NewRedisStoreFromURL(redisURL, keyPrefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), keyPrefix, ttl), nil
}

func (r *RedisStore) key(f Filter) string {
	return r.keyPrefix + ":" + f.key()
}

// Add stores an entry in the sorted set for its filter key.
func (r *RedisStore) Add(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	key := r.key(filterFor(entry))
	if err := r.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(entry.CreatedAt.UnixMilli()),
		Member: string(value),
	}).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set TTL: %w", err)
		}
	}
	return nil
}

// Candidates returns matching entries, newest first. Malformed members are
// skipped.
func (r *RedisStore) Candidates(ctx context.Context, filter Filter) ([]Entry, error) {
	values, err := r.client.ZRevRange(ctx, r.key(filter), 0, int64(filter.limit()-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cache candidates: %w", err)
	}

	out := make([]Entry, 0, len(values))
	for _, v := range values {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
