package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Completions receives the IDs of events the job completed. Satisfied by
// notify.Notifier; nil disables completion notifications.
type Completions interface {
	EventCompleted(ctx context.Context, eventID string)
}

// Scheduler fires the completion job on a fixed wall-clock interval,
// independent of any connection. Each run gets its own timeout; a run that
// overruns is cancelled and safely redone from scratch on the next tick.
// Two overlapping runs are both safe: the bulk update's predicate splits the
// qualifying rows between them.
type Scheduler struct {
	job         *Job
	store       Store
	completions Completions
	interval    time.Duration
	runTimeout  time.Duration
	logger      *slog.Logger
}

func NewScheduler(job *Job, store Store, completions Completions, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:         job,
		store:       store,
		completions: completions,
		interval:    interval,
		runTimeout:  runTimeout,
		logger:      logger,
	}
}

// Start runs the tick loop until the context is cancelled. Should be called
// as a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("lifecycle scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle scheduler stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single scheduled run: the job under its timeout, then
// the bookkeeping row, then completion notifications. Failures are logged
// for the operator; nothing here is fatal to the process.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	now := time.Now().UTC()
	ids, err := s.job.Run(runCtx, now)
	if err != nil {
		s.logger.Error("lifecycle run failed", "error", err)
		return
	}

	if err := s.store.RecordLifecycleRun(ctx, now, len(ids)); err != nil {
		s.logger.Error("failed to record lifecycle run", "error", err)
	}

	if s.completions != nil {
		for _, id := range ids {
			s.completions.EventCompleted(ctx, id)
		}
	}
}
