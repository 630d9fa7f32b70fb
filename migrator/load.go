package migrator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// LoadDir reads migration files from a directory and returns them as Normal
// mode migration records, ordered by filename. Files are named
// {id}-{name}.up.sql, with an optional {id}-{name}.down.sql holding the
// statements that revert it; the {id}-{name} stem becomes the migration name.
// A down file without a matching up file is an error, since it could never be
// executed.
func LoadDir(fsys vfs.FileSystem, dir string) ([]*Migration, error) {
	entries, err := vfs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed reading migrations directory %q: %w", dir, err)
	}

	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		var (
			stem  string
			files map[string]string
		)
		switch name := entry.Name(); {
		case strings.HasSuffix(name, upSuffix):
			stem, files = strings.TrimSuffix(name, upSuffix), ups
		case strings.HasSuffix(name, downSuffix):
			stem, files = strings.TrimSuffix(name, downSuffix), downs
		default:
			continue
		}

		content, err := vfs.ReadFile(fsys, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed reading migration file %q: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil, fmt.Errorf("migration file %q is empty", entry.Name())
		}
		files[stem] = string(content)
	}

	stems := make([]string, 0, len(ups))
	for stem := range ups {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	for stem := range downs {
		if _, ok := ups[stem]; !ok {
			return nil, fmt.Errorf("migration %q has a down file but no up file", stem)
		}
	}

	migrations := make([]*Migration, 0, len(stems))
	for _, stem := range stems {
		m := &Migration{Name: stem, Up: []string{ups[stem]}}
		if down, ok := downs[stem]; ok {
			m.Down = []string{down}
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}
