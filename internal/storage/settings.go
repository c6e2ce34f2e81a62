package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
)

// GetSetting decodes the value stored under key into dst. It reports false,
// leaving dst untouched, when the key is absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string, dst interface{}) (bool, error) {
	q, err := s.reader()
	if err != nil {
		return false, err
	}

	var raw string
	err = q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return true, nil
}

// SetSetting stores value under key, replacing any previous value
func (s *SQLiteStore) SetSetting(ctx context.Context, key string, value interface{}) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.Invalid("key", "setting key is required")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %q: %w", key, err)
	}

	return s.withTx(ctx, []string{migration.TableSettings}, func(tx *sql.Tx) error {
		return putSetting(ctx, tx, key, data)
	})
}

func putSetting(ctx context.Context, q querier, key string, value []byte) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	return s.withTx(ctx, []string{migration.TableSettings}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
		return err
	})
}

// GetSettings returns every stored setting ordered by key
func (s *SQLiteStore) GetSettings(ctx context.Context) ([]models.Setting, error) {
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	return getSettings(ctx, q)
}

func getSettings(ctx context.Context, q querier) ([]models.Setting, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := []models.Setting{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings = append(settings, models.Setting{Key: key, Value: json.RawMessage(value)})
	}
	return settings, rows.Err()
}

func (s *SQLiteStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v := def
	if _, err := s.GetSetting(ctx, key, &v); err != nil {
		return def, err
	}
	return v, nil
}

func (s *SQLiteStore) GetString(ctx context.Context, key string, def string) (string, error) {
	v := def
	if _, err := s.GetSetting(ctx, key, &v); err != nil {
		return def, err
	}
	return v, nil
}

func (s *SQLiteStore) GetInt(ctx context.Context, key string, def int) (int, error) {
	v := def
	if _, err := s.GetSetting(ctx, key, &v); err != nil {
		return def, err
	}
	return v, nil
}
