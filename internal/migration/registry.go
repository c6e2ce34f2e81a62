package migration

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/julianstephens/tally/internal/models"
)

// Upgrade transforms one stored record from the previous version's shape into
// the shape of the version that declares it. It must be pure: it may add
// fields with computed or constant defaults, but must not assume that any
// field exists, change the record's key or drop fields.
type Upgrade func(models.Record) (models.Record, error)

// Migration represents a single schema version
type Migration struct {
	Version int
	Name    string
	SQL     string
	// Upgrades maps a table name to the transform applied to each of its records
	Upgrades map[string]Upgrade
	// Removes lists fields a step is allowed to delete, per table. Removal is the
	// second half of a deprecation and must only name fields no live version writes.
	Removes map[string][]string
}

// Tables returns the tables whose records this step rewrites, in a stable order
func (m Migration) Tables() []string {
	tables := make([]string, 0, len(m.Upgrades))
	for t := range m.Upgrades {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Registry is the ordered list of schema versions known to this build
type Registry struct {
	migrations []Migration
}

// NewRegistry reads NNN_name.sql files from migrationFS and attaches the Go
// record upgrades keyed by version. Versions must be contiguous from 1.
func NewRegistry(migrationFS fs.FS, upgrades map[int]map[string]Upgrade, removes map[int]map[string][]string) (*Registry, error) {
	migrations, err := ReadMigrationFiles(migrationFS)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]int, len(migrations))
	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration versions must be contiguous: expected %d, found %d (%s)", i+1, m.Version, m.Name)
		}
		byVersion[m.Version] = i
	}

	for version, tables := range upgrades {
		i, ok := byVersion[version]
		if !ok {
			return nil, fmt.Errorf("upgrade registered for unknown version %d", version)
		}
		migrations[i].Upgrades = tables
	}
	for version, tables := range removes {
		i, ok := byVersion[version]
		if !ok {
			return nil, fmt.Errorf("field removal registered for unknown version %d", version)
		}
		migrations[i].Removes = tables
	}

	return &Registry{migrations: migrations}, nil
}

// ReadMigrationFiles reads and parses migration files from the migrations directory
// Returns migrations sorted by version number
func ReadMigrationFiles(migrationFS fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		// Parse version from filename (e.g., "001_init.sql" -> 1)
		parts := strings.SplitN(file.Name(), "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", file.Name())
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in filename %s: %w", file.Name(), err)
		}
		if version < 1 {
			return nil, fmt.Errorf("invalid version number in filename %s: version must be at least 1", file.Name())
		}

		content, err := fs.ReadFile(migrationFS, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	return migrations, nil
}

// Latest returns the highest version in the registry, 0 if it is empty
func (r *Registry) Latest() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Migrations returns every version in ascending order
func (r *Registry) Migrations() []Migration {
	return append([]Migration(nil), r.migrations...)
}

// Pending returns the versions after from, in ascending order
func (r *Registry) Pending(from int) []Migration {
	var pending []Migration
	for _, m := range r.migrations {
		if m.Version > from {
			pending = append(pending, m)
		}
	}
	return pending
}

// UpgradeRecords brings records of table written at version from up to the
// latest version by applying every pending step for that table in order.
func (r *Registry) UpgradeRecords(table string, from int, records []models.Record) ([]models.Record, error) {
	out := records
	for _, m := range r.Pending(from) {
		if _, ok := m.Upgrades[table]; !ok {
			continue
		}
		next := make([]models.Record, 0, len(out))
		for _, rec := range out {
			upgraded, err := m.upgradeRecord(table, rec)
			if err != nil {
				return nil, err
			}
			next = append(next, upgraded)
		}
		out = next
	}
	return out, nil
}

// upgradeRecord runs the step's transform for table on rec and checks that it
// kept the record's key and every field it was not allowed to remove.
func (m Migration) upgradeRecord(table string, rec models.Record) (models.Record, error) {
	upgrade, ok := m.Upgrades[table]
	if !ok {
		return rec, nil
	}

	keyField := KeyField(table)
	before, _ := rec.String(keyField)

	out, err := upgrade(rec.Clone())
	if err != nil {
		return nil, &stepError{table: table, key: before, err: err}
	}
	if out == nil {
		return nil, &stepError{table: table, key: before, err: fmt.Errorf("upgrade returned no record")}
	}

	if after, _ := out.String(keyField); after != before {
		return nil, &stepError{table: table, key: before, err: fmt.Errorf("upgrade changed %s from %q to %q", keyField, before, after)}
	}

	allowed := make(map[string]bool, len(m.Removes[table]))
	for _, f := range m.Removes[table] {
		allowed[f] = true
	}
	for field := range rec {
		if _, kept := out[field]; !kept && !allowed[field] {
			return nil, &stepError{table: table, key: before, err: fmt.Errorf("upgrade dropped field %q", field)}
		}
	}

	return out, nil
}

type stepError struct {
	table string
	key   string
	err   error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s record %q: %v", e.table, e.key, e.err)
}

func (e *stepError) Unwrap() error { return e.err }
