// Package tui is the interactive daily view. It renders the live result of
// the store's habits-with-logs query, so every committed write re-renders.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/live"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
	"github.com/julianstephens/tally/internal/utils"
)

type mode int

const (
	modeBrowse mode = iota
	modeSkipReason
)

type Options struct {
	Now       func() time.Time
	Telemetry *telemetry.Reporter
}

type Model struct {
	ctx       context.Context
	store     storage.Provider
	telemetry *telemetry.Reporter
	now       func() time.Time
	keys      KeyMap
	help      help.Model
	reason    textinput.Model
	mode      mode

	date       string
	group      *models.GroupTag
	rows       []models.HabitWithLog
	categories map[string]models.Category
	loaded     bool
	cursor     int
	status     string
	err        error

	// gen increments on every resubscribe; messages from older generations are dropped
	gen             int
	cancel          context.CancelFunc
	habitUpdates    <-chan live.Result[[]models.HabitWithLog]
	categoryUpdates <-chan live.Result[[]models.Category]
	initCmd         tea.Cmd

	width    int
	height   int
	quitting bool
}

type habitsMsg struct {
	gen    int
	result live.Result[[]models.HabitWithLog]
}

type categoriesMsg struct {
	gen    int
	result live.Result[[]models.Category]
}

type mutationMsg struct {
	status string
	err    error
}

func NewModel(ctx context.Context, store storage.Provider, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewReporter(nil, "", "")
	}

	reason := textinput.New()
	reason.Placeholder = "why is this day skipped?"
	reason.CharLimit = 120

	m := Model{
		ctx:        ctx,
		store:      store,
		telemetry:  opts.Telemetry,
		now:        opts.Now,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		reason:     reason,
		date:       utils.Today(opts.Now()),
		categories: map[string]models.Category{},
	}
	m.initCmd = m.subscribe()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// subscribe replaces the live queries for the current date and group filter
func (m *Model) subscribe() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.gen++
	m.loaded = false

	m.habitUpdates = m.store.WatchHabitsWithLogs(ctx, m.date, m.group)
	m.categoryUpdates = m.store.WatchCategories(ctx)
	return tea.Batch(
		waitForHabits(m.gen, m.habitUpdates),
		waitForCategories(m.gen, m.categoryUpdates),
	)
}

func waitForHabits(gen int, ch <-chan live.Result[[]models.HabitWithLog]) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return habitsMsg{gen: gen, result: r}
	}
}

func waitForCategories(gen int, ch <-chan live.Result[[]models.Category]) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return categoriesMsg{gen: gen, result: r}
	}
}

// Selected returns the habit row under the cursor
func (m Model) Selected() (models.HabitWithLog, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return models.HabitWithLog{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) Date() string { return m.date }
