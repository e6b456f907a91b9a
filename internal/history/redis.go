package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for the Redis backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore persists conversation windows as Redis lists, one key per user,
// trimmed to the window cap and refreshed with a fixed TTL on every append.
type RedisStore struct {
	rdb   *redis.Client
	turns int
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store with connection validation
func NewRedisStore(cfg RedisConfig, turns int, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, turns: turns, ttl: ttl}, nil
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("ctx:%d", userID)
}

// Load reads the last turns*2 entries for a user. Entries that fail to
// decode are skipped individually.
func (s *RedisStore) Load(ctx context.Context, userID int64) ([]Turn, error) {
	max := int64(maxEntries(s.turns))
	entries, err := s.rdb.LRange(ctx, s.key(userID), -max, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	window := make([]Turn, 0, len(entries))
	for _, entry := range entries {
		var turn Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			continue
		}
		if turn.Role == "" || turn.Content == "" {
			continue
		}
		window = append(window, turn)
	}
	return window, nil
}

// Append pushes a new entry, trims the list to the window cap and refreshes
// the key TTL
func (s *RedisStore) Append(ctx context.Context, userID int64, role, content string) error {
	payload, err := json.Marshal(NewTurn(role, content))
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := s.key(userID)
	max := int64(maxEntries(s.turns))

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -max, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append pipeline failed: %w", err)
	}
	return nil
}

// Clear removes the user's window
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying connection pool
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
