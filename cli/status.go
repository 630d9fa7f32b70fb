package cli

import (
	"fmt"
	"time"

	"github.com/khonsulabs/sqlx-simple-migrator/db"
	"github.com/khonsulabs/sqlx-simple-migrator/migrator"
)

// The Status command lists applied and pending migrations.
type Status struct {
	DB  string `kong:"arg,help='Path to the SQLite database.'"`
	Dir string `kong:"default='migrations',help='Directory containing {id}-{name}.{up|down}.sql migration files.'"`
}

// Run the status command.
func (c *Status) Run(appCtx *Context) error {
	migrations, err := migrator.LoadDir(appCtx.FS, c.Dir)
	if err != nil {
		return err
	}

	d, err := db.Open(appCtx.Ctx, c.DB, appCtx.TimeNow)
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck // Process exits right after.

	runner := migrator.New(d, migrator.WithLogger(appCtx.Logger))
	applied, err := runner.Applied(d.NewContext())
	if err != nil {
		return err
	}

	executedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		executedAt[rec.Name] = rec.ExecutedAt
	}

	data := make([][]string, 0, len(applied)+len(migrations))
	for _, rec := range applied {
		data = append(data, []string{
			rec.Name, "applied", rec.ExecutedAt.Local().Format(time.DateTime),
		})
	}
	for _, m := range migrations {
		if _, ok := executedAt[m.Name]; !ok {
			data = append(data, []string{m.Name, "pending", ""})
		}
	}

	err = renderTable([]string{"Name", "Status", "Executed At"}, data, appCtx.Stdout)
	if err != nil {
		return fmt.Errorf("failed rendering migrations table: %w", err)
	}

	return nil
}
