package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ldonohue/eventlive/internal/domain"
)

// AuthenticateToken resolves a bearer token to its principal. An unknown
// token yields domain.ErrUnauthenticated.
func (s *PostgresStore) AuthenticateToken(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	var p domain.Principal
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.name, u.email, u.is_superuser
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1
	`, token).Scan(&p.ID, &p.Name, &p.Email, &p.IsSuperuser)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return &p, nil
}

// CanObserve reports whether a principal may observe an event: its creator,
// assigned staff, or any superuser. A missing event yields
// domain.ErrEventNotFound.
func (s *PostgresStore) CanObserve(ctx context.Context, p *domain.Principal, eventID string) (bool, error) {
	var createdBy *string
	var isStaff bool
	err := s.pool.QueryRow(ctx, `
		SELECT e.created_by,
		       EXISTS(SELECT 1 FROM event_staff st WHERE st.event_id = e.id AND st.user_id = $2)
		FROM events e WHERE e.id = $1
	`, eventID, p.ID).Scan(&createdBy, &isStaff)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, domain.ErrEventNotFound
		}
		return false, fmt.Errorf("querying event permission: %w", err)
	}

	if p.IsSuperuser || isStaff {
		return true, nil
	}
	return createdBy != nil && *createdBy == p.ID, nil
}

// SupervisorsOf returns the distinct principal IDs entitled to an event's
// aggregate dashboard updates: the creator, assigned staff and superusers.
func (s *PostgresStore) SupervisorsOf(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT created_by FROM events WHERE id = $1 AND created_by IS NOT NULL
		UNION
		SELECT user_id FROM event_staff WHERE event_id = $1
		UNION
		SELECT id FROM users WHERE is_superuser
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying event supervisors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning supervisor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
