package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "tally.db"),
		storage.WithClock(func() time.Time { return testNow }))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

// run executes a command with a timeout so a missing live update fails instead of hanging
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("command did not complete")
		return nil
	}
}

// start delivers the initial live results and returns the pending habit wait
func start(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	batch, ok := run(t, m.Init()).(tea.BatchMsg)
	require.True(t, ok, "Init should batch the live subscriptions")

	var habitWait tea.Cmd
	for _, cmd := range batch {
		msg := run(t, cmd)
		next, wait := m.Update(msg)
		m = next.(Model)
		if _, isHabits := msg.(habitsMsg); isHabits {
			habitWait = wait
		}
	}
	return m, habitWait
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelLoadsLiveRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.CreateHabit(ctx, models.Habit{Name: "Walk", CategoryID: constants.FixedPositiveCategoryID, Kind: models.KindYesNo})
	require.NoError(t, err)

	m, _ := start(t, NewModel(ctx, store, Options{Now: func() time.Time { return testNow }}))

	assert.True(t, m.loaded)
	require.Len(t, m.rows, 1)
	assert.Equal(t, "Walk", m.rows[0].Habit.Name)
	assert.Equal(t, "2025-03-10", m.Date())
	assert.Contains(t, m.View(), "Walk")
	assert.Contains(t, m.View(), "Build")
}

func TestToggleLogsAndRerenders(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h, err := store.CreateHabit(ctx, models.Habit{Name: "Walk", CategoryID: constants.FixedPositiveCategoryID, Kind: models.KindYesNo})
	require.NoError(t, err)

	m, habitWait := start(t, NewModel(ctx, store, Options{Now: func() time.Time { return testNow }}))

	next, cmd := m.Update(keyMsg(" "))
	m = next.(Model)
	next, _ = m.Update(run(t, cmd))
	m = next.(Model)
	require.NoError(t, m.err)

	// the write reaches the view through the subscription, not a manual reload
	next, _ = m.Update(run(t, habitWait))
	m = next.(Model)
	require.NotNil(t, m.rows[0].Log)
	done, _ := m.rows[0].Log.Value.Bool()
	assert.True(t, done)

	entry, err := store.GetLogEntry(ctx, h.ID, "2025-03-10")
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestSkipRequiresReason(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h, err := store.CreateHabit(ctx, models.Habit{Name: "Run", CategoryID: constants.FixedPositiveCategoryID, Kind: models.KindYesNo})
	require.NoError(t, err)

	m, _ := start(t, NewModel(ctx, store, Options{Now: func() time.Time { return testNow }}))

	next, _ := m.Update(keyMsg("s"))
	m = next.(Model)
	assert.Equal(t, modeSkipReason, m.mode)

	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, modeSkipReason, m.mode)

	m.reason.SetValue("sick")
	next, cmd = m.Update(keyMsg("enter"))
	m = next.(Model)
	assert.Equal(t, modeBrowse, m.mode)
	next, _ = m.Update(run(t, cmd))
	m = next.(Model)
	require.NoError(t, m.err)

	entry, err := store.GetLogEntry(ctx, h.ID, "2025-03-10")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "sick", entry.SkippedReason)
}

func TestDateNavigationResubscribes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	m, _ := start(t, NewModel(ctx, store, Options{Now: func() time.Time { return testNow }}))
	gen := m.gen

	next, cmd := m.Update(keyMsg("h"))
	m = next.(Model)
	assert.Equal(t, "2025-03-09", m.Date())
	assert.Equal(t, gen+1, m.gen)
	assert.NotNil(t, cmd)

	// results from the previous subscription are ignored
	next, wait := m.Update(habitsMsg{gen: gen})
	assert.Nil(t, wait)
	assert.False(t, next.(Model).loaded)

	next, _ = m.Update(keyMsg("t"))
	assert.Equal(t, "2025-03-10", next.(Model).Date())
}

func TestStepValue(t *testing.T) {
	yesNo := models.Habit{Kind: models.KindYesNo}
	rating := models.Habit{Kind: models.KindRating, Options: []string{"low", "ok", "high"}}
	count := models.Habit{Kind: models.KindCount}
	duration := models.Habit{Kind: models.KindDuration}
	entry := func(v models.Value) *models.LogEntry { return &models.LogEntry{Value: v} }
	skipped := &models.LogEntry{Value: models.NoValue(), SkippedReason: "rest"}

	tests := []struct {
		name  string
		habit models.Habit
		log   *models.LogEntry
		dir   int
		want  models.Value
	}{
		{"yes/no unlogged", yesNo, nil, 1, models.BoolValue(true)},
		{"yes/no toggles off", yesNo, entry(models.BoolValue(true)), 1, models.BoolValue(false)},
		{"yes/no after skip", yesNo, skipped, 1, models.BoolValue(true)},
		{"rating starts at first", rating, nil, 1, models.StringValue("low")},
		{"rating cycles", rating, entry(models.StringValue("high")), 1, models.StringValue("low")},
		{"count increments", count, entry(models.NumberValue(2)), 1, models.NumberValue(3)},
		{"count floors at zero", count, nil, -1, models.NumberValue(0)},
		{"duration steps", duration, entry(models.NumberValue(10)), -1, models.NumberValue(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stepValue(tt.habit, tt.log, tt.dir)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNextGroupCycles(t *testing.T) {
	g := nextGroup(nil)
	require.NotNil(t, g)
	assert.Equal(t, models.GroupPositive, *g)
	g = nextGroup(g)
	assert.Equal(t, models.GroupNegative, *g)
	assert.Nil(t, nextGroup(g))
}

type fakePINStore struct{ hash string }

func (f fakePINStore) GetString(context.Context, string, string) (string, error) {
	return f.hash, nil
}

func stubPrompt(t *testing.T, answers ...string) *int {
	t.Helper()
	old := promptPIN
	t.Cleanup(func() { promptPIN = old })
	calls := 0
	promptPIN = func(string) (string, error) {
		if calls >= len(answers) {
			return "", errors.New("no more answers")
		}
		calls++
		return answers[calls-1], nil
	}
	return &calls
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()

	calls := stubPrompt(t)
	assert.NoError(t, Unlock(ctx, fakePINStore{}))
	assert.Equal(t, 0, *calls, "no PIN set means no prompt")

	hash, err := HashPIN("1234")
	require.NoError(t, err)

	calls = stubPrompt(t, "0000", "1234")
	assert.NoError(t, Unlock(ctx, fakePINStore{hash: hash}))
	assert.Equal(t, 2, *calls)

	stubPrompt(t, "1", "2", "3")
	assert.ErrorIs(t, Unlock(ctx, fakePINStore{hash: hash}), ErrPINRejected)
}

func TestPromptNewPIN(t *testing.T) {
	stubPrompt(t, "4321", "4321")
	pin, err := PromptNewPIN()
	require.NoError(t, err)
	assert.Equal(t, "4321", pin)

	stubPrompt(t, "4321", "1234")
	_, err = PromptNewPIN()
	assert.Error(t, err)

	stubPrompt(t, "12ab")
	_, err = PromptNewPIN()
	assert.Error(t, err)
}

func TestVerifyPIN(t *testing.T) {
	hash, err := HashPIN("2468")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"), "expected a bcrypt hash, got %q", hash)
	assert.True(t, VerifyPIN(hash, "2468"))
	assert.False(t, VerifyPIN(hash, "2469"))
	assert.False(t, VerifyPIN("", "2468"))

	again, err := HashPIN("2468")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes of the same PIN must be salted")
	assert.True(t, VerifyPIN(again, "2468"))
}
