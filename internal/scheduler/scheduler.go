package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/korolevna/gigabot/internal/history"
)

// Scheduler runs periodic maintenance jobs. Its single job drops in-memory
// conversation windows idle longer than the retention period, so the
// fallback store honors the same TTL Redis enforces with key expiry.
type Scheduler struct {
	cron    *cron.Cron
	memory  *history.MemoryStore
	maxIdle time.Duration
	logger  *slog.Logger
}

// New creates a scheduler sweeping memory windows older than maxIdle
func New(memory *history.MemoryStore, maxIdle time.Duration, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		memory:  memory,
		maxIdle: maxIdle,
		logger:  logger,
	}
	s.scheduleSweep()
	return s
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// scheduleSweep runs the hourly retention sweep
func (s *Scheduler) scheduleSweep() {
	_, err := s.cron.AddFunc("@hourly", s.sweep)
	if err != nil {
		s.logger.Error("schedule sweep failed", "error", err)
	}
}

func (s *Scheduler) sweep() {
	if dropped := s.memory.SweepIdle(s.maxIdle); dropped > 0 {
		s.logger.Info("memory sweep dropped idle histories", "count", dropped)
	}
}
