package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ldonohue/eventlive/internal/domain"
)

const eventColumns = `
	e.id, e.name, e.start_date, e.end_date, e.status,
	(SELECT COUNT(*) FROM participants p WHERE p.event_id = e.id),
	(SELECT COUNT(*) FROM participants p WHERE p.event_id = e.id AND p.checked_in)`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.Name, &e.StartDate, &e.EndDate, &e.Status,
		&e.ParticipantCount, &e.CheckedInCount,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent returns the summary projection for one event.
func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	event, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, eventID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return event, nil
}

// ListAccessibleEvents returns the events a principal may observe: events
// they created or are assigned to as staff, or every event for a superuser.
func (s *PostgresStore) ListAccessibleEvents(ctx context.Context, p *domain.Principal) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e`
	args := []any{}
	if !p.IsSuperuser {
		query += ` WHERE e.created_by = $1
			OR EXISTS (SELECT 1 FROM event_staff st WHERE st.event_id = e.id AND st.user_id = $1)`
		args = append(args, p.ID)
	}
	query += ` ORDER BY e.start_date NULLS LAST, e.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accessible events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CompleteEndedEvents advances every CONFIRMED or ONGOING event whose end
// date is strictly before now to COMPLETED, in a single statement, and
// returns the IDs updated. Re-running with no wall-clock advance matches
// nothing, which is what makes the lifecycle job idempotent. Two overlapping
// runs split the qualifying rows between them; no row-level locking is taken
// beyond the UPDATE's own.
func (s *PostgresStore) CompleteEndedEvents(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE events
		SET status = $1
		WHERE end_date IS NOT NULL
		  AND end_date < $2
		  AND status IN ($3, $4)
		RETURNING id
	`, domain.StatusCompleted, now, domain.StatusConfirmed, domain.StatusOngoing)
	if err != nil {
		return nil, fmt.Errorf("completing ended events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning completed event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordLifecycleRun appends a bookkeeping row for one scheduler run.
func (s *PostgresStore) RecordLifecycleRun(ctx context.Context, ranAt time.Time, completed int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lifecycle_runs (ran_at, completed_count)
		VALUES ($1, $2)
	`, ranAt, completed)
	if err != nil {
		return fmt.Errorf("recording lifecycle run: %w", err)
	}
	return nil
}
