package cli

import (
	"fmt"

	"github.com/khonsulabs/sqlx-simple-migrator/db"
	"github.com/khonsulabs/sqlx-simple-migrator/migrator"
)

// The Run command applies all outstanding migrations from the migrations
// directory to the database, in filename order.
type Run struct {
	DB  string `kong:"arg,help='Path to the SQLite database to migrate.'"`
	Dir string `kong:"default='migrations',help='Directory containing {id}-{name}.{up|down}.sql migration files.'"`
}

// Run the run command.
func (c *Run) Run(appCtx *Context) error {
	migrations, err := migrator.LoadDir(appCtx.FS, c.Dir)
	if err != nil {
		return err
	}

	d, err := db.Open(appCtx.Ctx, c.DB, appCtx.TimeNow)
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck // Process exits right after.

	runner := migrator.New(d,
		migrator.WithLogger(appCtx.Logger),
		migrator.WithTimeNow(appCtx.TimeNow),
	)
	if err := runner.RunAll(d.NewContext(), migrations); err != nil {
		return fmt.Errorf("migration run failed: %w", err)
	}

	return nil
}
