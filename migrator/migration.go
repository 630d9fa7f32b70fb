package migrator

// Mode controls whether a migration is re-executed on runs after the one that
// first applied it. Anything other than ModeNormal only has an effect in
// binaries built with the dev build tag; release builds treat every migration
// as ModeNormal.
type Mode int

// Migration replay modes.
const (
	// ModeNormal migrations run exactly once, governed by the ledger.
	ModeNormal Mode = iota
	// ModeDebug migrations are rolled back and reapplied on every run.
	ModeDebug
	// ModeNuclearDebug forces every declared migration to be rolled back and
	// reapplied on every run, not just the one carrying the mode.
	ModeNuclearDebug
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDebug:
		return "debug"
	case ModeNuclearDebug:
		return "nuclear-debug"
	}
	return "unknown"
}

// Migration is one named, reversible schema change unit. Up statements are
// executed in declared order when applying; Down statements are executed in
// reverse declared order when reverting, so that paired up/down statements can
// be written adjacently and still unwind correctly. Statement content is
// opaque to the migrator.
//
// Migrations are value configuration: populate the fields and hand the record
// to the Runner. The migrator never mutates them.
type Migration struct {
	// Name uniquely identifies the migration, and is the ledger's primary
	// key. Names must be unique across a declared list.
	Name string
	// Up statements, in apply order.
	Up []string
	// Down statements, in the order matching Up. They run reversed.
	Down []string
	// Mode is the replay mode. The zero value is ModeNormal.
	Mode Mode
}
