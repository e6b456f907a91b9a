package history

import (
	"context"
	"log/slog"
)

// CacheBackend is the optional external cache behind a DualStore. The
// concrete implementation is RedisStore; tests substitute fakes.
type CacheBackend interface {
	Load(ctx context.Context, userID int64) ([]Turn, error)
	Append(ctx context.Context, userID int64, role, content string) error
	Clear(ctx context.Context, userID int64) error
}

// DualStore composes the external cache with the in-process fallback. The
// cache is authoritative whenever reachable: every successful cache load
// overwrites the in-process mirror. Cache failures degrade silently to
// memory-only operation; they are never surfaced to callers.
type DualStore struct {
	cache  CacheBackend
	memory *MemoryStore
	logger *slog.Logger
}

// NewDualStore creates the composed store. cache may be nil, which is a
// valid memory-only configuration rather than an error.
func NewDualStore(cache CacheBackend, memory *MemoryStore, logger *slog.Logger) *DualStore {
	return &DualStore{cache: cache, memory: memory, logger: logger}
}

func (s *DualStore) Load(ctx context.Context, userID int64) []Turn {
	if s.cache == nil {
		return s.memory.Load(ctx, userID)
	}
	window, err := s.cache.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("history cache load failed, using in-process copy", "user_id", userID, "error", err)
		return s.memory.Load(ctx, userID)
	}
	s.memory.Replace(userID, window)
	return window
}

func (s *DualStore) Append(ctx context.Context, userID int64, role, content string) {
	if s.cache != nil {
		if err := s.cache.Append(ctx, userID, role, content); err != nil {
			s.logger.Warn("history cache append failed", "user_id", userID, "error", err)
		}
	}
	s.memory.Append(ctx, userID, role, content)
}

func (s *DualStore) Clear(ctx context.Context, userID int64) {
	if s.cache != nil {
		if err := s.cache.Clear(ctx, userID); err != nil {
			s.logger.Warn("history cache clear failed", "user_id", userID, "error", err)
		}
	}
	s.memory.Clear(ctx, userID)
}
