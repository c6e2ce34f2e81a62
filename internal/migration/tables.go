package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/tally/internal/models"
)

// Stored tables. Every table except settings keeps its record as a JSON
// document in a data column, with indexed fields exposed as generated columns.
const (
	TableCategories = "categories"
	TableHabits     = "habits"
	TableLogEntries = "log_entries"
	TableSettings   = "settings"
)

// AllTables lists the stored tables in dependency order
var AllTables = []string{TableCategories, TableHabits, TableLogEntries, TableSettings}

// KeyField returns the record field holding the table's primary key
func KeyField(table string) string {
	if table == TableSettings {
		return "key"
	}
	return "id"
}

func knownTable(table string) bool {
	for _, t := range AllTables {
		if t == table {
			return true
		}
	}
	return false
}

type rowRecord struct {
	key string
	raw string
	rec models.Record
}

// readRecords loads every record of table in primary key order
func readRecords(ctx context.Context, tx *sql.Tx, table string) ([]rowRecord, error) {
	if !knownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf("SELECT id, data FROM %s ORDER BY id", table)
	if table == TableSettings {
		query = "SELECT key, value FROM settings ORDER BY key"
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rowRecord
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}

		var rec models.Record
		if table == TableSettings {
			var value interface{}
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, fmt.Errorf("failed to decode setting %q: %w", key, err)
			}
			rec = models.Record{"key": key, "value": value}
		} else {
			rec, err = models.ParseRecord([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("%s record %q: %w", table, key, err)
			}
		}
		out = append(out, rowRecord{key: key, raw: raw, rec: rec})
	}
	return out, rows.Err()
}

// writeRecord stores rec back under key. Only the document changes; the key never does.
func writeRecord(ctx context.Context, tx *sql.Tx, table, key string, rec models.Record) error {
	if table == TableSettings {
		value, err := json.Marshal(rec["value"])
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE settings SET value = ? WHERE key = ?", string(value), key)
		return err
	}

	data, err := rec.Bytes()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET data = ? WHERE id = ?", table), string(data), key)
	return err
}

func encodeRecord(table string, rec models.Record) (string, error) {
	if table == TableSettings {
		data, err := json.Marshal(rec["value"])
		return string(data), err
	}
	data, err := rec.Bytes()
	return string(data), err
}
