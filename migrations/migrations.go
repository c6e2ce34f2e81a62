// Package migrations holds the schema registry: one NNN_name.sql file per
// version plus the record upgrades that bring stored documents forward.
package migrations

import (
	"embed"
	"io/fs"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
)

//go:embed sqlite/*.sql
var FS embed.FS

// upgrades maps a version to the per-table record transforms it applies
var upgrades = map[int]map[string]migration.Upgrade{
	2: {migration.TableHabits: defaultHabitInterval},
	3: {migration.TableCategories: defaultCategoryGroup},
	4: {migration.TableLogEntries: defaultLogEntryUpdatedAt},
}

// removes is empty until a deprecated field is two versions past its last writer
var removes = map[int]map[string][]string{}

// Registry builds the registry shipped with this build
func Registry() (*migration.Registry, error) {
	sub, err := fs.Sub(FS, "sqlite")
	if err != nil {
		return nil, err
	}
	return migration.NewRegistry(sub, upgrades, removes)
}

// defaultHabitInterval: habits written before intervals existed were daily
func defaultHabitInterval(rec models.Record) (models.Record, error) {
	rec.SetDefault("interval", string(models.IntervalDaily))
	return rec, nil
}

// defaultCategoryGroup: the reserved negative category is the only one that
// existed in the negative group before group tags were stored
func defaultCategoryGroup(rec models.Record) (models.Record, error) {
	if id, _ := rec.String("id"); id == constants.FixedNegativeCategoryID {
		rec.SetDefault("group", string(models.GroupNegative))
	} else {
		rec.SetDefault("group", string(models.GroupPositive))
	}
	return rec, nil
}

func defaultLogEntryUpdatedAt(rec models.Record) (models.Record, error) {
	if created, ok := rec["createdAt"]; ok && created != nil {
		rec.SetDefault("updatedAt", created)
	}
	return rec, nil
}
