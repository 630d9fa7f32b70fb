package migrator

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khonsulabs/sqlx-simple-migrator/db"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	// A unique name per test, to avoid clashing of in-memory SQLite DBs.
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	require.NoError(t, err)

	// Not using just :memory: to avoid 'no such table' issue.
	// See https://github.com/mattn/go-sqlite3#faq
	d, err := db.Open(context.Background(),
		fmt.Sprintf("file:migrator-%x?mode=memory&cache=shared", rndName), timeNowFn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	// Execution order log for test migrations, outside the migrator's reach.
	_, err = d.Exec(`CREATE TABLE exec_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT, entry TEXT NOT NULL)`)
	require.NoError(t, err)

	return d
}

func newTestRunner(d *db.DB, dev bool) *Runner {
	r := New(d,
		WithTimeNow(timeNowFn),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	r.dev = dev
	return r
}

// logStep returns a statement that appends entry to the execution log when run.
func logStep(entry string) string {
	return fmt.Sprintf(`INSERT INTO exec_log (entry) VALUES ('%s')`, entry)
}

func execLog(t *testing.T, d *db.DB) []string {
	t.Helper()
	rows, err := d.Query(`SELECT entry FROM exec_log ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck // Read-only query.

	var entries []string
	for rows.Next() {
		var entry string
		require.NoError(t, rows.Scan(&entry))
		entries = append(entries, entry)
	}
	require.NoError(t, rows.Err())

	return entries
}

func clearExecLog(t *testing.T, d *db.DB) {
	t.Helper()
	_, err := d.Exec(`DELETE FROM exec_log`)
	require.NoError(t, err)
}

func ledgerNames(t *testing.T, r *Runner) []string {
	t.Helper()
	records, err := r.Applied(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.Name)
	}

	return names
}

// testMigration builds a reversible migration whose every statement logs its
// execution, so tests can assert exact ordering.
func testMigration(name string, mode Mode, steps int) *Migration {
	m := &Migration{Name: name, Mode: mode}
	for i := 1; i <= steps; i++ {
		m.Up = append(m.Up, logStep(fmt.Sprintf("%s.up.%d", name, i)))
		m.Down = append(m.Down, logStep(fmt.Sprintf("%s.down.%d", name, i)))
	}
	return m
}

func TestRunnerBootstrap(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	// An empty declared list still creates the ledger.
	require.NoError(t, r.RunAll(context.Background(), nil))
	assert.Equal(t, []string{LedgerName}, ledgerNames(t, r))

	// And doing it again is a no-op.
	require.NoError(t, r.RunAll(context.Background(), nil))
	assert.Equal(t, []string{LedgerName}, ledgerNames(t, r))
}

func TestRunnerAppliesInDeclaredOrder(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 1),
		testMigration("0002-b", ModeNormal, 1),
		testMigration("0003-c", ModeNormal, 1),
	}
	require.NoError(t, r.RunAll(context.Background(), migrations))

	assert.Equal(t, []string{"0001-a.up.1", "0002-b.up.1", "0003-c.up.1"}, execLog(t, d))
	assert.ElementsMatch(t,
		[]string{LedgerName, "0001-a", "0002-b", "0003-c"}, ledgerNames(t, r))
}

func TestRunnerIdempotence(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 2),
		testMigration("0002-b", ModeNormal, 1),
	}
	require.NoError(t, r.RunAll(context.Background(), migrations))
	firstRun := execLog(t, d)

	require.NoError(t, r.RunAll(context.Background(), migrations))
	assert.Equal(t, firstRun, execLog(t, d), "second run must be a no-op")
}

func TestRunnerAtomicity(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	broken := &Migration{
		Name: "0002-b",
		Up:   []string{logStep("0002-b.up.1"), "NOT VALID SQL"},
	}
	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 1),
		broken,
		testMigration("0003-c", ModeNormal, 1),
	}

	err := r.RunAll(context.Background(), migrations)
	require.Error(t, err)

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, "0002-b", stmtErr.Migration)
	assert.Equal(t, MigrationUp, stmtErr.Direction)
	assert.Equal(t, 1, stmtErr.Index)

	// The failing migration was rolled back as a whole, including its first
	// step, and the rest of the plan was skipped. The migration before it
	// stays committed.
	assert.Equal(t, []string{"0001-a.up.1"}, execLog(t, d))
	assert.ElementsMatch(t, []string{LedgerName, "0001-a"}, ledgerNames(t, r))

	// Fixing the migration and re-running resumes where the ledger left off.
	broken.Up = []string{logStep("0002-b.up.1"), logStep("0002-b.up.2")}
	require.NoError(t, r.RunAll(context.Background(), migrations))
	assert.Equal(t, []string{
		"0001-a.up.1", "0002-b.up.1", "0002-b.up.2", "0003-c.up.1",
	}, execLog(t, d))
}

func TestRunnerDownReversesUp(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, true)

	m := testMigration("0001-a", ModeDebug, 3)
	require.NoError(t, r.RunAll(context.Background(), []*Migration{m}))
	clearExecLog(t, d)

	// The second run replays the debug migration: down in reverse declared
	// order, then up in declared order.
	require.NoError(t, r.RunAll(context.Background(), []*Migration{m}))
	assert.Equal(t, []string{
		"0001-a.down.3", "0001-a.down.2", "0001-a.down.1",
		"0001-a.up.1", "0001-a.up.2", "0001-a.up.3",
	}, execLog(t, d))
}

func TestRunnerDebugModeIsolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dev      bool
		expentry []string
	}{
		{name: "dev_replays", dev: true, expentry: []string{
			"0001-a.down.1", "0001-a.up.1",
		}},
		{name: "release_runs_once", dev: false, expentry: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := newTestDB(t)
			r := newTestRunner(d, tt.dev)

			m := testMigration("0001-a", ModeDebug, 1)
			require.NoError(t, r.RunAll(context.Background(), []*Migration{m}))
			clearExecLog(t, d)

			require.NoError(t, r.RunAll(context.Background(), []*Migration{m}))
			assert.Equal(t, tt.expentry, execLog(t, d))
		})
	}
}

func TestRunnerNuclearDebug(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, true)

	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 1),
		testMigration("0002-b", ModeNormal, 1),
		testMigration("0003-c", ModeNuclearDebug, 1),
	}
	require.NoError(t, r.RunAll(context.Background(), migrations))
	clearExecLog(t, d)

	// A single nuclear migration forces a full rollback of everything applied,
	// in reverse declared order, followed by a full reapplication.
	require.NoError(t, r.RunAll(context.Background(), migrations))
	assert.Equal(t, []string{
		"0003-c.down.1", "0002-b.down.1", "0001-a.down.1",
		"0001-a.up.1", "0002-b.up.1", "0003-c.up.1",
	}, execLog(t, d))
	assert.ElementsMatch(t,
		[]string{LedgerName, "0001-a", "0002-b", "0003-c"}, ledgerNames(t, r))
}

func TestRunnerNuclearDebugIgnoredInRelease(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 1),
		testMigration("0002-b", ModeNuclearDebug, 1),
	}
	require.NoError(t, r.RunAll(context.Background(), migrations))
	clearExecLog(t, d)

	require.NoError(t, r.RunAll(context.Background(), migrations))
	assert.Empty(t, execLog(t, d))
}

func TestRunnerConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		migrations []*Migration
		expErr     string
	}{
		{
			name: "duplicate_name",
			migrations: []*Migration{
				testMigration("0001-a", ModeNormal, 1),
				testMigration("0001-a", ModeNormal, 1),
			},
			expErr: `duplicate migration name "0001-a"`,
		},
		{
			name: "reserved_name",
			migrations: []*Migration{
				testMigration(LedgerName, ModeNormal, 1),
			},
			expErr: `"migrations" is reserved for the ledger migration`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := newTestDB(t)
			r := newTestRunner(d, false)

			err := r.RunAll(context.Background(), tt.migrations)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorContains(t, err, tt.expErr)

			// Detected before any store interaction: not even the ledger was
			// created.
			assert.Empty(t, ledgerNames(t, r))
			assert.Empty(t, execLog(t, d))
		})
	}
}

func TestRunnerUndeclaredLedgerEntries(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)

	var logBuf bytes.Buffer
	r := New(d,
		WithTimeNow(timeNowFn),
		WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))),
	)

	migrations := []*Migration{
		testMigration("0001-a", ModeNormal, 1),
		testMigration("0002-b", ModeNormal, 1),
	}
	require.NoError(t, r.RunAll(context.Background(), migrations))

	// Dropping a migration from the declared list leaves its ledger entry
	// alone and only warns about it.
	require.NoError(t, r.RunAll(context.Background(), migrations[:1]))
	assert.ElementsMatch(t,
		[]string{LedgerName, "0001-a", "0002-b"}, ledgerNames(t, r))
	assert.Contains(t, logBuf.String(), "no longer declared")
	assert.Contains(t, logBuf.String(), "0002-b")
}

func TestRunnerConnectionError(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)
	require.NoError(t, d.Close())

	err := r.RunAll(context.Background(), []*Migration{
		testMigration("0001-a", ModeNormal, 1),
	})
	require.Error(t, err)
}

func TestRunnerCancelledContext(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	r := newTestRunner(d, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunAll(ctx, []*Migration{testMigration("0001-a", ModeNormal, 1)})
	require.ErrorIs(t, err, context.Canceled)

	// Nothing was left half-applied; a run with a live context succeeds.
	require.NoError(t, r.RunAll(context.Background(), []*Migration{
		testMigration("0001-a", ModeNormal, 1),
	}))
	assert.ElementsMatch(t, []string{LedgerName, "0001-a"}, ledgerNames(t, r))
}
