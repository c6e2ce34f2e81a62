// Package sheets is the spreadsheet backup boundary. A snapshot becomes one
// CSV sheet per table plus a YAML manifest describing each sheet's columns.
// Sheet layouts carry their own column version, negotiated independently of
// the schema version of the records inside them.
package sheets

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/snapshot"
	"gopkg.in/yaml.v3"
)

// ColumnVersion is the newest sheet layout this build reads and the one it writes
const ColumnVersion = 1

// Column types. Text cells hold the string itself; JSON cells hold the encoded value.
const (
	TypeText = "text"
	TypeJSON = "json"
)

type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Sheet struct {
	Name          string   `yaml:"name"`
	File          string   `yaml:"file"`
	ColumnVersion int      `yaml:"column_version"`
	Rows          int      `yaml:"rows"`
	Columns       []Column `yaml:"columns"`
}

// Manifest describes an exported workbook
type Manifest struct {
	FormatVersion int       `yaml:"format_version"`
	SchemaVersion int       `yaml:"schema_version"`
	ExportedAt    time.Time `yaml:"exported_at"`
	Sheets        []Sheet   `yaml:"sheets"`
}

// Export writes snap into dir as one sheet per table and a manifest
func Export(dir string, snap *snapshot.Snapshot) (*Manifest, error) {
	doc, err := snap.Document()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sheet directory: %w", err)
	}

	manifest := &Manifest{
		FormatVersion: doc.FormatVersion,
		SchemaVersion: doc.SchemaVersion,
		ExportedAt:    doc.ExportedAt,
	}

	for _, table := range migration.AllTables {
		name := snapshot.FieldName(table)
		records := doc.Tables[table]
		columns := inferColumns(table, records)

		data, err := encodeSheet(columns, records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sheet %s: %w", name, err)
		}

		file := name + constants.SheetFileSuffix
		if err := os.WriteFile(filepath.Join(dir, file), data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", name, err)
		}

		manifest.Sheets = append(manifest.Sheets, Sheet{
			Name:          name,
			File:          file,
			ColumnVersion: ColumnVersion,
			Rows:          len(records),
			Columns:       columns,
		})
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.SheetManifestName), data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return manifest, nil
}

// inferColumns lists the key column first, then every other field in name
// order. A column is text only when every value in it is a non-empty string,
// so empty cells always mean the field was absent.
func inferColumns(table string, records []models.Record) []Column {
	keyField := migration.KeyField(table)
	isText := map[string]bool{keyField: true}

	for _, rec := range records {
		for field, value := range rec {
			if _, seen := isText[field]; !seen {
				isText[field] = true
			}
			if value == nil {
				continue
			}
			if str, ok := value.(string); !ok || str == "" {
				isText[field] = false
			}
		}
	}

	names := make([]string, 0, len(isText))
	for field := range isText {
		if field != keyField {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	names = append([]string{keyField}, names...)

	columns := make([]Column, 0, len(names))
	for _, n := range names {
		typ := TypeJSON
		if isText[n] {
			typ = TypeText
		}
		columns = append(columns, Column{Name: n, Type: typ})
	}
	return columns
}

// encodeSheet renders records as CSV. Missing and null fields are empty cells.
func encodeSheet(columns []Column, records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			value, ok := rec[c.Name]
			if !ok || value == nil {
				continue
			}
			if c.Type == TypeText {
				row[i] = value.(string)
				continue
			}
			data, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", c.Name, err)
			}
			row[i] = string(data)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadManifest loads and checks the manifest in dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.SheetManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, apperrors.TransferFormat("manifest is not valid YAML: %v", err)
	}
	if manifest.FormatVersion < 1 || manifest.FormatVersion > constants.SnapshotFormatVersion {
		return nil, apperrors.TransferFormat("unsupported format_version %d", manifest.FormatVersion)
	}
	if manifest.SchemaVersion < 1 {
		return nil, apperrors.TransferFormat("missing schema_version")
	}
	if manifest.ExportedAt.IsZero() {
		return nil, apperrors.TransferFormat("missing exported_at")
	}
	return &manifest, nil
}

// Import reads a workbook written by Export back into a snapshot document.
// The document keeps the manifest's schema version so the store can upgrade it.
func Import(dir string) (*snapshot.Document, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Sheet, len(manifest.Sheets))
	for _, s := range manifest.Sheets {
		byName[s.Name] = s
	}

	doc := &snapshot.Document{
		FormatVersion: manifest.FormatVersion,
		SchemaVersion: manifest.SchemaVersion,
		ExportedAt:    manifest.ExportedAt,
		Tables:        make(map[string][]models.Record, len(migration.AllTables)),
	}

	for _, table := range migration.AllTables {
		name := snapshot.FieldName(table)
		sheet, ok := byName[name]
		if !ok {
			return nil, apperrors.TransferFormat("manifest has no %s sheet", name)
		}
		if sheet.ColumnVersion < 1 || sheet.ColumnVersion > ColumnVersion {
			return nil, apperrors.TransferFormat("sheet %s uses column version %d, this build reads up to %d",
				name, sheet.ColumnVersion, ColumnVersion)
		}

		records, err := readSheet(filepath.Join(dir, sheet.File), sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		doc.Tables[table] = records
	}

	// Same structural checks as a JSON snapshot
	data, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(data)
}

func readSheet(path string, sheet Sheet) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.TransferFormat("cannot open %s: %v", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.TransferFormat("malformed CSV: %v", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.TransferFormat("missing header row")
	}

	header := rows[0]
	if len(header) != len(sheet.Columns) {
		return nil, apperrors.TransferFormat("header has %d columns, manifest lists %d", len(header), len(sheet.Columns))
	}
	for i, c := range sheet.Columns {
		if header[i] != c.Name {
			return nil, apperrors.TransferFormat("column %d is %q, manifest expects %q", i+1, header[i], c.Name)
		}
		if c.Type != TypeText && c.Type != TypeJSON {
			return nil, apperrors.TransferFormat("column %q has unknown type %q", c.Name, c.Type)
		}
	}

	records := make([]models.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := make(models.Record, len(row))
		for i, cell := range row {
			if cell == "" {
				continue
			}
			c := sheet.Columns[i]
			if c.Type == TypeText {
				rec[c.Name] = cell
				continue
			}
			var value interface{}
			if err := json.Unmarshal([]byte(cell), &value); err != nil {
				return nil, apperrors.TransferFormat("row %d column %q: %v", n+2, c.Name, err)
			}
			rec[c.Name] = value
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeDocument(doc *snapshot.Document) ([]byte, error) {
	wire := map[string]interface{}{
		"formatVersion": doc.FormatVersion,
		"schemaVersion": doc.SchemaVersion,
		"exportedAt":    doc.ExportedAt.Format(time.RFC3339Nano),
	}
	for _, table := range migration.AllTables {
		wire[snapshot.FieldName(table)] = doc.Tables[table]
	}
	return json.Marshal(wire)
}
