package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/korolevna/gigabot/internal/history"
)

func TestSweepDropsIdleHistories(t *testing.T) {
	memory := history.NewMemoryStore(5)
	memory.Append(context.Background(), 100, history.RoleUser, "вопрос")

	s := New(memory, time.Nanosecond, slog.Default())
	time.Sleep(time.Millisecond)
	s.sweep()

	assert.Empty(t, memory.Load(context.Background(), 100))
}

func TestSweepKeepsFreshHistories(t *testing.T) {
	memory := history.NewMemoryStore(5)
	memory.Append(context.Background(), 100, history.RoleUser, "вопрос")

	s := New(memory, time.Hour, slog.Default())
	s.sweep()

	assert.Len(t, memory.Load(context.Background(), 100), 1)
}

func TestStartStop(t *testing.T) {
	s := New(history.NewMemoryStore(5), time.Hour, slog.Default())
	s.Start()
	s.Stop()
}
