package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a Redis store for testing.
// Requires a Redis server at localhost:6379.
func setupTestStore(t *testing.T, turns int) *RedisStore {
	store, err := NewRedisStore(RedisConfig{Addr: "localhost:6379"}, turns, time.Hour)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t, 6)
	defer store.Close()

	ctx := context.Background()
	userID := int64(910001)
	defer store.Clear(ctx, userID)

	require.NoError(t, store.Append(ctx, userID, RoleUser, "Что приготовить?"))
	require.NoError(t, store.Append(ctx, userID, RoleAssistant, "Можно суп"))

	window, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, RoleUser, window[0].Role)
	assert.Equal(t, "Можно суп", window[1].Content)
}

func TestRedisStoreTrimsWindow(t *testing.T) {
	turns := 2
	store := setupTestStore(t, turns)
	defer store.Close()

	ctx := context.Background()
	userID := int64(910002)
	defer store.Clear(ctx, userID)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, userID, RoleUser, fmt.Sprintf("q%d", i)))
		require.NoError(t, store.Append(ctx, userID, RoleAssistant, fmt.Sprintf("a%d", i)))
	}

	window, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, window, turns*2)
	assert.Equal(t, "q3", window[0].Content)
	assert.Equal(t, "a4", window[len(window)-1].Content)
}

func TestRedisStoreSkipsMalformedEntries(t *testing.T) {
	store := setupTestStore(t, 6)
	defer store.Close()

	ctx := context.Background()
	userID := int64(910003)
	defer store.Clear(ctx, userID)

	require.NoError(t, store.Append(ctx, userID, RoleUser, "нормальная запись"))
	require.NoError(t, store.rdb.RPush(ctx, store.key(userID), "{not json").Err())

	window, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "нормальная запись", window[0].Content)
}
