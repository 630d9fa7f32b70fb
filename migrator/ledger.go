package migrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LedgerName is the reserved name of the bootstrap migration that creates the
// ledger table itself. It is always the first migration to run, and is never
// subject to Debug or NuclearDebug replay. Declaring a migration with this
// name is a ConfigurationError.
const LedgerName = "migrations"

// The leading underscore marks the table as internal, keeping it out of
// user-facing schema listings.
const ledgerTable = "_migrations"

const (
	recordStmt = `INSERT INTO ` + ledgerTable + ` (name, executed_at) VALUES (?, ?)`
	eraseStmt  = `DELETE FROM ` + ledgerTable + ` WHERE name = ?`
)

// ledgerMigration returns the bootstrap migration. Recording its own name in
// the table it creates happens through the same apply path as any other
// migration.
func ledgerMigration() *Migration {
	return &Migration{
		Name: LedgerName,
		Up: []string{
			`CREATE TABLE ` + ledgerTable + ` (
				name TEXT NOT NULL PRIMARY KEY,
				executed_at TIMESTAMP NOT NULL
			)`,
		},
		Down: []string{
			`DROP TABLE IF EXISTS ` + ledgerTable,
		},
	}
}

// Record is one ledger row: a migration that has been successfully applied.
type Record struct {
	Name       string
	ExecutedAt time.Time
}

// Applied returns the ledger contents in chronological order of application.
// A store without a ledger table yet reads as empty.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT name, executed_at FROM `+ledgerTable+` ORDER BY executed_at, name`)
	if err != nil {
		// The ledger table is created by the bootstrap migration, so its
		// absence just means nothing has run yet.
		if isMissingLedger(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed reading the ledger: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query.

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed scanning ledger row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading the ledger: %w", err)
	}

	return records, nil
}

// isMissingLedger reports whether err indicates that the ledger table doesn't
// exist yet. SQL stores don't agree on error codes for this, but the message
// is stable enough to match on.
func isMissingLedger(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}

// appliedSet loads the set of migration names recorded in the ledger.
func (r *Runner) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	applied := make(map[string]struct{})
	records, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		applied[rec.Name] = struct{}{}
	}

	return applied, nil
}
