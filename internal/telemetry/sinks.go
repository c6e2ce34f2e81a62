package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	pq "github.com/lib/pq"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

// NopSink drops every event
type NopSink struct{}

func (NopSink) Send(context.Context, Event) error { return nil }
func (NopSink) Close() error                      { return nil }

// LogSink writes events to the application log
type LogSink struct{}

func (LogSink) Send(_ context.Context, e Event) error {
	keyvals := []interface{}{"event", string(e.Type), "user", e.UserID, "version", e.AppVersion}
	for k, v := range e.Metadata {
		keyvals = append(keyvals, k, v)
	}
	logger.Info("Telemetry", keyvals...)
	return nil
}

func (LogSink) Close() error { return nil }

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

const createEventsTable = `CREATE TABLE IF NOT EXISTS tally_events (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	app_version TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertEvent = `INSERT INTO tally_events (user_id, event_type, metadata, app_version, occurred_at)
VALUES ($1, $2, $3, $4, $5)`

// PostgresSink appends events to a tally_events table
type PostgresSink struct {
	db    *sql.DB
	mu    sync.Mutex
	ready bool
}

// NewPostgresSink validates connStr and prepares a lazy connection; nothing
// touches the network until the first Send.
func NewPostgresSink(connStr string) (*PostgresSink, error) {
	connector, err := pq.NewConnector(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Send(ctx context.Context, e Event) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	meta := e.Metadata
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, insertEvent, e.UserID, string(e.Type), string(data), e.AppVersion, e.OccurredAt); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *PostgresSink) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to prepare events table: %w", err)
	}
	s.ready = true
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// ValidateConnString accepts URI or key=value PostgreSQL connection strings
// and rejects ones that embed a password outside the keyring.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := u.User.Password(); isSet {
			return ErrEmbeddedCredentials
		}
		return nil
	}

	for _, pair := range strings.Fields(connStr) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "password") {
			return ErrEmbeddedCredentials
		}
	}
	return nil
}

// OpenSink builds the sink named by the telemetry.sink config key. The
// connection string is only consulted for the postgres sink.
func OpenSink(kind string, connStr func() (string, error)) (Sink, error) {
	switch kind {
	case "", constants.TelemetrySinkNone:
		return NopSink{}, nil
	case constants.TelemetrySinkLog:
		return LogSink{}, nil
	case constants.TelemetrySinkPostgres:
		cs, err := connStr()
		if err != nil {
			return nil, fmt.Errorf("failed to load telemetry connection string: %w", err)
		}
		return NewPostgresSink(cs)
	default:
		return nil, fmt.Errorf("unknown telemetry sink %q", kind)
	}
}
