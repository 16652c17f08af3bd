package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcclellann/fredAdvance/pkg/config"
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/ledger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler records a balance snapshot for each day once it has closed.
type Scheduler struct {
	Cron   *cron.Cron
	Ledger *ledger.Ledger
	Logger *zap.Logger

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(l *ledger.Ledger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:   cron.New(cron.WithParser(config.CronParser)),
		Ledger: l,
		Logger: logger,
		now:    time.Now,
	}
}

// Register adds the snapshot task on the given six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops scheduling and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.Cron.Stop()
}

// snapshotTask records the summary as of yesterday, the last complete day.
func (s *Scheduler) snapshotTask() {
	asOf := date.FromTime(s.now()).Add(-1)
	snapshot, err := s.Ledger.TakeSnapshot(asOf)
	if errors.Is(err, ledger.ErrInvalidRange) {
		s.Logger.Info("no events yet, snapshot skipped", zap.Stringer("as_of", asOf))
		return
	}
	if err != nil {
		s.Logger.Error("snapshot failed", zap.Stringer("as_of", asOf), zap.Error(err))
		return
	}
	s.Logger.Info("daily snapshot recorded", zap.Stringer("id", snapshot.ID), zap.Stringer("as_of", asOf))
}
