package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ldonohue/eventlive/internal/domain"
)

const participantColumns = `
	id, event_id, first_name, last_name, email,
	checked_in, check_in_time, check_out_time, registration_date`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(
		&p.ID, &p.EventID, &p.FirstName, &p.LastName, &p.Email,
		&p.CheckedIn, &p.CheckInTime, &p.CheckOutTime, &p.RegistrationDate,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipant returns one participant projection.
func (s *PostgresStore) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	p, err := scanParticipant(s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, participantID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("querying participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns every participant of an event with their current
// check-in state, ordered by registration.
func (s *PostgresStore) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE event_id = $1 ORDER BY registration_date, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	participants := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// RegisterParticipant inserts a new participant for an event.
func (s *PostgresStore) RegisterParticipant(ctx context.Context, tx *Tx, eventID, firstName, lastName, email string) (*domain.Participant, error) {
	p, err := scanParticipant(tx.QueryRow(ctx, `
		INSERT INTO participants (id, event_id, first_name, last_name, email, registration_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+participantColumns,
		uuid.NewString(), eventID, firstName, lastName, email, time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("inserting participant: %w", err)
	}
	return p, nil
}

// CheckIn marks a participant as checked in. Checking in an already
// checked-in participant is rejected with domain.ErrAlreadyCheckedIn.
func (s *PostgresStore) CheckIn(ctx context.Context, tx *Tx, participantID string, now time.Time) (*domain.Participant, error) {
	p, err := scanParticipant(tx.QueryRow(ctx, `
		UPDATE participants
		SET checked_in = TRUE, check_in_time = $2, check_out_time = NULL
		WHERE id = $1 AND NOT checked_in
		RETURNING `+participantColumns, participantID, now))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, s.checkInConflict(ctx, tx, participantID, domain.ErrAlreadyCheckedIn)
		}
		return nil, fmt.Errorf("checking in participant: %w", err)
	}
	return p, nil
}

// CheckOut marks a checked-in participant as checked out.
func (s *PostgresStore) CheckOut(ctx context.Context, tx *Tx, participantID string, now time.Time) (*domain.Participant, error) {
	p, err := scanParticipant(tx.QueryRow(ctx, `
		UPDATE participants
		SET checked_in = FALSE, check_out_time = $2
		WHERE id = $1 AND checked_in
		RETURNING `+participantColumns, participantID, now))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, s.checkInConflict(ctx, tx, participantID, domain.ErrNotCheckedIn)
		}
		return nil, fmt.Errorf("checking out participant: %w", err)
	}
	return p, nil
}

// checkInConflict distinguishes a missing participant from a state conflict
// when a guarded check-in/out UPDATE matched no rows.
func (s *PostgresStore) checkInConflict(ctx context.Context, tx *Tx, participantID string, conflict error) error {
	var exists bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM participants WHERE id = $1)", participantID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking participant existence: %w", err)
	}
	if !exists {
		return domain.ErrParticipantNotFound
	}
	return conflict
}
