package migrator

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Pool exposes the database operations the Runner needs. *sql.DB implements
// it. Transaction lifecycle, pooling and timeouts belong to the
// implementation; the Runner treats a timed-out statement like any other
// failed statement.
type Pool interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Runner applies declared migrations against a store, tracking execution
// history in the ledger. A Runner is safe to reuse across runs, but a single
// store must only be migrated by one runner at a time.
type Runner struct {
	pool    Pool
	logger  *slog.Logger
	timeNow func() time.Time
	// dev mirrors the devBuild build-tag constant. It exists as a field only
	// so that tests in this package can exercise both behaviors.
	dev bool
}

// Option is a function that allows configuring the Runner.
type Option func(*Runner)

// WithLogger sets the logger used by the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger.With("component", "migrator")
	}
}

// WithTimeNow sets the function used to retrieve the current system time,
// recorded in the ledger on successful application.
func WithTimeNow(timeNowFn func() time.Time) Option {
	return func(r *Runner) {
		r.timeNow = timeNowFn
	}
}

// New creates a Runner over the given pool.
func New(pool Pool, opts ...Option) *Runner {
	r := &Runner{
		pool:    pool,
		logger:  slog.Default().With("component", "migrator"),
		timeNow: time.Now,
		dev:     devBuild,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RunAll reconciles the declared migrations against the ledger and executes
// whatever is outstanding, in declared order, each migration in its own
// transaction. The ledger migration is implicit and always first.
//
// The first failure aborts the run: migrations committed earlier in the run
// stay committed, the failing migration is rolled back as a whole, and the
// rest of the plan is skipped. Running again after fixing the failure resumes
// where the ledger left off.
func (r *Runner) RunAll(ctx context.Context, declared []*Migration) error {
	if err := validate(declared); err != nil {
		return err
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return err
	}

	plan := buildPlan(declared, applied, r.dev, r.logger)
	for _, s := range plan {
		if err := r.execute(ctx, s); err != nil {
			return err
		}
	}

	return nil
}

// execute runs a single plan step in one transaction: all of the migration's
// statements for the given direction, plus the matching ledger mutation. The
// transaction is always resolved, also on early failure.
func (r *Runner) execute(ctx context.Context, s step) error {
	m := s.migration
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	// Best-effort; a no-op after a successful commit.
	defer func() {
		_ = tx.Rollback()
	}()

	stmts := m.Up
	if s.direction == MigrationDown {
		stmts = reversed(m.Down)
	}

	r.logger.Info("running migration", "name", m.Name, "direction", s.direction)
	for i, stmt := range stmts {
		r.logger.Debug("executing statement", "name", m.Name, "index", i)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &StatementError{
				Migration: m.Name,
				Direction: s.direction,
				Index:     i,
				Statement: stmt,
				Err:       err,
			}
		}
	}

	if err := r.updateLedger(ctx, tx, s, len(stmts)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &StatementError{
			Migration: m.Name,
			Direction: s.direction,
			Index:     len(stmts) + 1,
			Statement: "COMMIT TRANSACTION",
			Err:       err,
		}
	}

	return nil
}

// updateLedger records or erases the migration inside its own transaction, so
// that the ledger and the schema change commit or roll back together.
func (r *Runner) updateLedger(ctx context.Context, tx *sql.Tx, s step, index int) error {
	var (
		stmt string
		args []any
	)
	if s.direction == MigrationUp {
		stmt, args = recordStmt, []any{s.migration.Name, r.timeNow().UTC()}
	} else {
		stmt, args = eraseStmt, []any{s.migration.Name}
	}

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return &StatementError{
			Migration: s.migration.Name,
			Direction: s.direction,
			Index:     index,
			Statement: stmt,
			Err:       err,
		}
	}

	return nil
}

func reversed(stmts []string) []string {
	out := make([]string, 0, len(stmts))
	for i := len(stmts) - 1; i >= 0; i-- {
		out = append(out, stmts[i])
	}
	return out
}
