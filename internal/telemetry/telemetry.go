// Package telemetry is the write-only analytics boundary. Events carry a user
// id, an event type and coarse metadata; never habit names, values or notes.
// Sink failures never reach the caller's workflow.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

type EventType string

const (
	EventAppOpen          EventType = "app_open"
	EventHabitCreated     EventType = "habit_created"
	EventHabitLogged      EventType = "habit_logged"
	EventHabitSkipped     EventType = "habit_skipped"
	EventCategoryCreated  EventType = "category_created"
	EventSnapshotExported EventType = "snapshot_exported"
	EventSnapshotImported EventType = "snapshot_imported"
)

// Metadata is flat string key/value context for an event
type Metadata map[string]string

// keys that could carry user content
var forbiddenKeys = map[string]bool{
	"name":          true,
	"nameSecondary": true,
	"description":   true,
	"value":         true,
	"note":          true,
	"skippedReason": true,
	"options":       true,
}

type Event struct {
	UserID     string    `json:"userId"`
	Type       EventType `json:"type"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	AppVersion string    `json:"appVersion"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink delivers events somewhere outside the process
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Reporter stamps events and hands them to a sink, swallowing failures
type Reporter struct {
	sink       Sink
	userID     string
	appVersion string
	now        func() time.Time
}

func NewReporter(sink Sink, userID, appVersion string) *Reporter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Reporter{
		sink:       sink,
		userID:     userID,
		appVersion: appVersion,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send delivers one event. Errors are wrapped in ErrSinkUnavailable; most
// callers want Emit, which logs and drops them.
func (r *Reporter) Send(ctx context.Context, typ EventType, meta Metadata) error {
	e := Event{
		UserID:     r.userID,
		Type:       typ,
		Metadata:   scrub(meta),
		AppVersion: r.appVersion,
		OccurredAt: r.now(),
	}
	if err := r.sink.Send(ctx, e); err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrSinkUnavailable, typ, err)
	}
	return nil
}

// Emit sends an event and logs any failure at Warn
func (r *Reporter) Emit(ctx context.Context, typ EventType, meta Metadata) {
	if err := r.Send(ctx, typ, meta); err != nil {
		logger.Warn("Telemetry event dropped", "event", string(typ), "error", err)
	}
}

func (r *Reporter) Close() error {
	return r.sink.Close()
}

func scrub(meta Metadata) Metadata {
	if len(meta) == 0 {
		return nil
	}
	out := make(Metadata, len(meta))
	for k, v := range meta {
		if forbiddenKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Reporter) AppOpen(ctx context.Context) {
	r.Emit(ctx, EventAppOpen, nil)
}

func (r *Reporter) HabitCreated(ctx context.Context, h models.Habit) {
	r.Emit(ctx, EventHabitCreated, Metadata{
		"kind":     string(h.Kind),
		"interval": string(h.Interval),
		"fixed":    strconv.FormatBool(h.CategoryID == constants.FixedPositiveCategoryID || h.CategoryID == constants.FixedNegativeCategoryID),
	})
}

func (r *Reporter) HabitLogged(ctx context.Context, h models.Habit) {
	r.Emit(ctx, EventHabitLogged, Metadata{"kind": string(h.Kind)})
}

func (r *Reporter) HabitSkipped(ctx context.Context, h models.Habit) {
	r.Emit(ctx, EventHabitSkipped, Metadata{"kind": string(h.Kind)})
}

func (r *Reporter) CategoryCreated(ctx context.Context, c models.Category) {
	r.Emit(ctx, EventCategoryCreated, Metadata{"group": string(c.Group)})
}

// SnapshotExported records how much data left the device, by table
func (r *Reporter) SnapshotExported(ctx context.Context, target string, counts map[string]int) {
	r.Emit(ctx, EventSnapshotExported, countsMetadata(target, counts))
}

func (r *Reporter) SnapshotImported(ctx context.Context, source string, counts map[string]int) {
	r.Emit(ctx, EventSnapshotImported, countsMetadata(source, counts))
}

func countsMetadata(channel string, counts map[string]int) Metadata {
	meta := Metadata{"channel": channel}
	for table, n := range counts {
		meta["count_"+table] = strconv.Itoa(n)
	}
	return meta
}
