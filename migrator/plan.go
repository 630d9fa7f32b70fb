package migrator

import (
	"fmt"
	"log/slog"
	"slices"
)

// Direction of a single plan step.
type Direction int

// Plan step directions.
const (
	MigrationUp Direction = iota
	MigrationDown
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == MigrationDown {
		return "down"
	}
	return "up"
}

// step is one planned operation: apply or revert a single migration.
type step struct {
	migration *Migration
	direction Direction
}

// validate checks the declared list for configuration errors before any store
// interaction. The reserved ledger name and duplicate names are rejected.
func validate(declared []*Migration) error {
	seen := make(map[string]struct{}, len(declared))
	for _, m := range declared {
		if m.Name == LedgerName {
			return &ConfigurationError{
				Msg: fmt.Sprintf("%q is reserved for the ledger migration", LedgerName),
			}
		}
		if _, ok := seen[m.Name]; ok {
			return &ConfigurationError{
				Msg: fmt.Sprintf("duplicate migration name %q", m.Name),
			}
		}
		seen[m.Name] = struct{}{}
	}

	return nil
}

// buildPlan computes the ordered operations to perform, given the declared
// migration list, the set of names recorded in the ledger, and whether this is
// a development build. The declared order is the sole ordering authority;
// ledger timestamps never reorder execution.
//
// The ledger migration itself is scheduled first if unapplied, and is exempt
// from the replay modes. Ledger entries with no declared counterpart are left
// alone (the migrator has no down statements to run for them) and reported at
// warning level, since detecting schema drift is not this package's job.
func buildPlan(declared []*Migration, applied map[string]struct{}, dev bool, logger *slog.Logger) []step {
	var plan []step
	if _, ok := applied[LedgerName]; !ok {
		plan = append(plan, step{ledgerMigration(), MigrationUp})
	}

	if orphans := orphanNames(declared, applied); len(orphans) > 0 {
		logger.Warn("ledger records migrations that are no longer declared",
			"names", orphans)
	}

	if dev && anyNuclear(declared) {
		// Tear everything down in reverse declared order, then reapply the
		// full list. Only migrations actually recorded in the ledger are
		// reverted.
		for i := len(declared) - 1; i >= 0; i-- {
			if _, ok := applied[declared[i].Name]; ok {
				plan = append(plan, step{declared[i], MigrationDown})
			}
		}
		for _, m := range declared {
			plan = append(plan, step{m, MigrationUp})
		}
		return plan
	}

	for _, m := range declared {
		_, isApplied := applied[m.Name]
		switch {
		case !isApplied:
			plan = append(plan, step{m, MigrationUp})
		case dev && m.Mode == ModeDebug:
			plan = append(plan, step{m, MigrationDown}, step{m, MigrationUp})
		}
	}

	return plan
}

func anyNuclear(declared []*Migration) bool {
	for _, m := range declared {
		if m.Mode == ModeNuclearDebug {
			return true
		}
	}
	return false
}

func orphanNames(declared []*Migration, applied map[string]struct{}) []string {
	known := make(map[string]struct{}, len(declared)+1)
	known[LedgerName] = struct{}{}
	for _, m := range declared {
		known[m.Name] = struct{}{}
	}

	var orphans []string
	for name := range applied {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	slices.Sort(orphans)

	return orphans
}
