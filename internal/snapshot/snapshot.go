// Package snapshot defines the portable transfer format: every record of
// every table plus the schema version they were written at.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
)

// Snapshot is a complete export at the current schema version
type Snapshot struct {
	FormatVersion int               `json:"formatVersion"`
	SchemaVersion int               `json:"schemaVersion"`
	ExportedAt    time.Time         `json:"exportedAt"`
	Categories    []models.Category `json:"categories"`
	Habits        []models.Habit    `json:"habits"`
	LogEntries    []models.LogEntry `json:"logEntries"`
	Settings      []models.Setting  `json:"settings"`
}

// Document is a snapshot in record form. Records may come from an older
// schema version and are brought forward with Upgrade before use.
type Document struct {
	FormatVersion int
	SchemaVersion int
	ExportedAt    time.Time
	Tables        map[string][]models.Record
}

// wire field names per stored table
var tableFields = map[string]string{
	migration.TableCategories: "categories",
	migration.TableHabits:     "habits",
	migration.TableLogEntries: "logEntries",
	migration.TableSettings:   "settings",
}

// FieldName returns the transfer-format name of a stored table
func FieldName(table string) string {
	return tableFields[table]
}

// Counts returns the number of records per table
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		migration.TableCategories: len(s.Categories),
		migration.TableHabits:     len(s.Habits),
		migration.TableLogEntries: len(s.LogEntries),
		migration.TableSettings:   len(s.Settings),
	}
}

// Encode renders the snapshot as indented JSON
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return data, nil
}

// Document converts the snapshot into record form
func (s *Snapshot) Document() (*Document, error) {
	doc := &Document{
		FormatVersion: s.FormatVersion,
		SchemaVersion: s.SchemaVersion,
		ExportedAt:    s.ExportedAt,
		Tables:        make(map[string][]models.Record, len(tableFields)),
	}

	add := func(table string, v interface{}) error {
		rec, err := models.ToRecord(v)
		if err != nil {
			return fmt.Errorf("failed to convert %s record: %w", table, err)
		}
		doc.Tables[table] = append(doc.Tables[table], rec)
		return nil
	}

	for _, table := range migration.AllTables {
		doc.Tables[table] = []models.Record{}
	}
	for _, c := range s.Categories {
		if err := add(migration.TableCategories, c); err != nil {
			return nil, err
		}
	}
	for _, h := range s.Habits {
		if err := add(migration.TableHabits, h); err != nil {
			return nil, err
		}
	}
	for _, e := range s.LogEntries {
		if err := add(migration.TableLogEntries, e); err != nil {
			return nil, err
		}
	}
	for _, st := range s.Settings {
		if err := add(migration.TableSettings, st); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

type wireDocument struct {
	FormatVersion *int             `json:"formatVersion"`
	SchemaVersion *int             `json:"schemaVersion"`
	ExportedAt    *string          `json:"exportedAt"`
	Categories    *[]models.Record `json:"categories"`
	Habits        *[]models.Record `json:"habits"`
	LogEntries    *[]models.Record `json:"logEntries"`
	Settings      *[]models.Record `json:"settings"`
}

// Decode parses and structurally validates a snapshot. Every envelope field
// and every table array is required; records must carry a unique key.
func Decode(data []byte) (*Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.TransferFormat("not a snapshot document: %v", err)
	}

	if w.FormatVersion == nil {
		return nil, apperrors.TransferFormat("missing formatVersion")
	}
	if *w.FormatVersion < 1 || *w.FormatVersion > constants.SnapshotFormatVersion {
		return nil, apperrors.TransferFormat("unsupported formatVersion %d (supported: 1-%d)",
			*w.FormatVersion, constants.SnapshotFormatVersion)
	}
	if w.SchemaVersion == nil {
		return nil, apperrors.TransferFormat("missing schemaVersion")
	}
	if *w.SchemaVersion < 1 {
		return nil, apperrors.TransferFormat("invalid schemaVersion %d", *w.SchemaVersion)
	}
	if w.ExportedAt == nil {
		return nil, apperrors.TransferFormat("missing exportedAt")
	}
	exportedAt, err := time.Parse(time.RFC3339Nano, *w.ExportedAt)
	if err != nil {
		return nil, apperrors.TransferFormat("exportedAt %q is not an ISO-8601 timestamp", *w.ExportedAt)
	}

	doc := &Document{
		FormatVersion: *w.FormatVersion,
		SchemaVersion: *w.SchemaVersion,
		ExportedAt:    exportedAt,
		Tables:        make(map[string][]models.Record, len(tableFields)),
	}

	arrays := map[string]*[]models.Record{
		migration.TableCategories: w.Categories,
		migration.TableHabits:     w.Habits,
		migration.TableLogEntries: w.LogEntries,
		migration.TableSettings:   w.Settings,
	}
	for _, table := range migration.AllTables {
		records := arrays[table]
		if records == nil {
			return nil, apperrors.TransferFormat("missing %s", tableFields[table])
		}
		if err := checkRecords(table, *records); err != nil {
			return nil, err
		}
		doc.Tables[table] = *records
	}

	return doc, nil
}

func checkRecords(table string, records []models.Record) error {
	keyField := migration.KeyField(table)
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		if rec == nil {
			return apperrors.TransferFormat("%s[%d] is not an object", tableFields[table], i)
		}
		key, ok := rec.String(keyField)
		if !ok || key == "" {
			return apperrors.TransferFormat("%s[%d] has no %s", tableFields[table], i, keyField)
		}
		if seen[key] {
			return apperrors.TransferFormat("%s has duplicate %s %q", tableFields[table], keyField, key)
		}
		seen[key] = true

		if table == migration.TableSettings {
			if _, ok := rec["value"]; !ok {
				return apperrors.TransferFormat("setting %q has no value", key)
			}
		}
	}
	return nil
}

// Upgrade brings every record forward to the registry's latest version using
// the same transforms the store applies on open.
func (d *Document) Upgrade(registry *migration.Registry) error {
	latest := registry.Latest()
	if d.SchemaVersion > latest {
		return fmt.Errorf("%w: snapshot schema version %d is newer than supported version %d",
			apperrors.ErrSchemaTooNew, d.SchemaVersion, latest)
	}
	if d.SchemaVersion == latest {
		return nil
	}

	for _, table := range migration.AllTables {
		upgraded, err := registry.UpgradeRecords(table, d.SchemaVersion, d.Tables[table])
		if err != nil {
			return fmt.Errorf("failed to upgrade snapshot %s from version %d: %w",
				tableFields[table], d.SchemaVersion, err)
		}
		d.Tables[table] = upgraded
	}
	d.SchemaVersion = latest
	return nil
}

// Snapshot decodes the records into entities. Call Upgrade first when the
// document may predate the current schema.
func (d *Document) Snapshot() (*Snapshot, error) {
	s := &Snapshot{
		FormatVersion: d.FormatVersion,
		SchemaVersion: d.SchemaVersion,
		ExportedAt:    d.ExportedAt,
		Categories:    make([]models.Category, 0, len(d.Tables[migration.TableCategories])),
		Habits:        make([]models.Habit, 0, len(d.Tables[migration.TableHabits])),
		LogEntries:    make([]models.LogEntry, 0, len(d.Tables[migration.TableLogEntries])),
		Settings:      make([]models.Setting, 0, len(d.Tables[migration.TableSettings])),
	}

	for _, rec := range d.Tables[migration.TableCategories] {
		var c models.Category
		if err := rec.Decode(&c); err != nil {
			return nil, apperrors.TransferFormat("category %v: %v", rec["id"], err)
		}
		s.Categories = append(s.Categories, c)
	}
	for _, rec := range d.Tables[migration.TableHabits] {
		var h models.Habit
		if err := rec.Decode(&h); err != nil {
			return nil, apperrors.TransferFormat("habit %v: %v", rec["id"], err)
		}
		s.Habits = append(s.Habits, h)
	}
	for _, rec := range d.Tables[migration.TableLogEntries] {
		var e models.LogEntry
		if err := rec.Decode(&e); err != nil {
			return nil, apperrors.TransferFormat("log entry %v: %v", rec["id"], err)
		}
		s.LogEntries = append(s.LogEntries, e)
	}
	for _, rec := range d.Tables[migration.TableSettings] {
		var st models.Setting
		if err := rec.Decode(&st); err != nil {
			return nil, apperrors.TransferFormat("setting %v: %v", rec["key"], err)
		}
		s.Settings = append(s.Settings, st)
	}
	return s, nil
}
