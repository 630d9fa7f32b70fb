package migrator

import "fmt"

// ConnectionError indicates that the store was unreachable when a transaction
// was requested. Nothing from the current run's plan has executed when it is
// returned (prior committed migrations are unaffected).
type ConnectionError struct {
	Err error
}

// Error returns a string representation of the error.
func (e ConnectionError) Error() string {
	return fmt.Sprintf("failed connecting to the store: %s", e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e ConnectionError) Unwrap() error {
	return e.Err
}

// StatementError indicates that a single migration statement failed. The run
// is aborted, with migrations committed earlier in the run left committed, and
// the failing migration left wholly unapplied (or unreverted).
type StatementError struct {
	// Migration is the name of the migration the statement belongs to.
	Migration string
	// Direction of the migration at the time of failure.
	Direction Direction
	// Index of the failing statement within the executed sequence, starting
	// at 0.
	Index int
	// Statement is the statement that failed.
	Statement string
	Err       error
}

// Error returns a string representation of the error.
func (e StatementError) Error() string {
	return fmt.Sprintf("failed executing %s statement %d of migration %q: %s",
		e.Direction, e.Index, e.Migration, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e StatementError) Unwrap() error {
	return e.Err
}

// ConfigurationError indicates an invalid declared migration list, such as a
// duplicate or reserved name. It is detected before any store interaction.
type ConfigurationError struct {
	Msg string
}

// Error returns a string representation of the error.
func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid migration list: %s", e.Msg)
}
