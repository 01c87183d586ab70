package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx wraps a pgx transaction and collects callbacks to run only after the
// transaction commits. Live notifications must be registered through
// AfterCommit so a publish can never precede (or outlive a rollback of) the
// state change it announces.
type Tx struct {
	pgx.Tx
	afterCommit []func()
}

// AfterCommit registers fn to run once the transaction has committed.
// Callbacks are discarded on rollback.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// WithTx runs fn inside a transaction. If fn returns an error the
// transaction is rolled back and the error returned. On successful commit,
// registered after-commit callbacks run in registration order; their
// failures are theirs to handle (fire-and-forget).
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	tx := &Tx{Tx: pgtx}
	if err := fn(tx); err != nil {
		_ = pgtx.Rollback(ctx)
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for _, fn := range tx.afterCommit {
		fn()
	}
	return nil
}
