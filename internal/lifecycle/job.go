// Package lifecycle advances events past their scheduled end to COMPLETED on
// a fixed interval. The job's predicate — end date strictly before now, and
// status CONFIRMED or ONGOING — is re-evaluated on every run, which makes it
// idempotent: a run that finds nothing is a successful no-op, and a failed
// run is naturally retried by the next tick.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the persistence surface the job mutates.
type Store interface {
	// CompleteEndedEvents performs the bulk transition in a single atomic
	// statement and returns the IDs of the events it updated.
	CompleteEndedEvents(ctx context.Context, now time.Time) ([]string, error)
	RecordLifecycleRun(ctx context.Context, ranAt time.Time, completed int) error
}

// Job is the idempotent completion task. Transient store failures are
// retried a bounded number of times with exponential backoff; exhausting the
// retries is an operational error, not a fatal one — the predicate is stable,
// so the next scheduled run picks up the same rows.
type Job struct {
	store       Store
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

func NewJob(store Store, logger *slog.Logger) *Job {
	return &Job{
		store:       store,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// Run executes one pass of the completion job and returns the IDs of the
// events it moved to COMPLETED.
func (j *Job) Run(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	var err error

	for attempt := 1; attempt <= j.maxAttempts; attempt++ {
		ids, err = j.store.CompleteEndedEvents(ctx, now)
		if err == nil {
			break
		}

		j.logger.Warn("lifecycle job attempt failed",
			"attempt", attempt, "max_attempts", j.maxAttempts, "error", err)

		if attempt == j.maxAttempts {
			return nil, fmt.Errorf("completing ended events after %d attempts: %w", j.maxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(j.baseDelay << (attempt - 1)):
		}
	}

	if len(ids) == 0 {
		j.logger.Info("lifecycle job: no events to complete", "now", now)
		return nil, nil
	}

	j.logger.Info("lifecycle job: events completed", "count", len(ids), "event_ids", ids)
	return ids, nil
}
