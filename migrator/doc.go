// Package migrator provides functionality to manage database schema migrations.
//
// Features:
//   - Supports both forward (`up`) and rollback (`down`) migrations, with down
//     statements unwinding in reverse declared order
//   - Tracks migration history in a dedicated ledger table, itself created by a
//     reserved bootstrap migration through the same apply path
//   - Runs each migration in its own transaction, aborting the run on the first
//     failure while keeping earlier migrations committed
//   - Loads SQL migration files from a filesystem with structured naming
//     (`{id}-{name}.{up|down}.sql`), or accepts migrations declared in code
//   - Development builds (the `dev` build tag) can mark migrations for forced
//     replay on every run; release builds always run each migration once
package migrator
