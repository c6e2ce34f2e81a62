package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

func encodeDoc(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(data), nil
}

// queryDocs runs a query selecting a single data column and decodes every row
func queryDocs[T any](ctx context.Context, q querier, query string, args ...interface{}) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// getDoc loads one record by primary key; ok is false when it does not exist
func getDoc[T any](ctx context.Context, q querier, table, id string) (v T, ok bool, err error) {
	var data string
	err = q.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s record %q: %w", table, id, err)
	}
	return v, true, nil
}

// putDoc inserts or replaces the record stored under id
func putDoc(ctx context.Context, q querier, table, id string, v interface{}) error {
	data, err := encodeDoc(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data", table)
	if _, err := q.ExecContext(ctx, query, id, data); err != nil {
		return fmt.Errorf("failed to write %s record %q: %w", table, id, err)
	}
	return nil
}

func deleteDoc(ctx context.Context, q querier, table, id string) (bool, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s record %q: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
