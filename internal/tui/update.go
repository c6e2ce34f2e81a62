package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

const (
	countStep    = 1
	durationStep = 5
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case habitsMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.result.Err != nil {
			m.err = msg.result.Err
		} else {
			m.rows = msg.result.Value
			m.loaded = true
			if m.cursor >= len(m.rows) {
				m.cursor = max(len(m.rows)-1, 0)
			}
		}
		return m, waitForHabits(m.gen, m.habitUpdates)

	case categoriesMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.result.Err != nil {
			m.err = msg.result.Err
		} else {
			m.categories = make(map[string]models.Category, len(msg.result.Value))
			for _, c := range msg.result.Value {
				m.categories[c.ID] = c
			}
		}
		return m, waitForCategories(m.gen, m.categoryUpdates)

	case mutationMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeSkipReason {
			return m.updateSkipReason(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.PrevDay):
		return m.moveDate(-1)
	case key.Matches(msg, m.keys.NextDay):
		return m.moveDate(1)
	case key.Matches(msg, m.keys.Today):
		m.date = utils.Today(m.now())
		m.status = ""
		return m, m.subscribe()

	case key.Matches(msg, m.keys.Group):
		m.group = nextGroup(m.group)
		m.cursor = 0
		return m, m.subscribe()

	case key.Matches(msg, m.keys.Toggle):
		row, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.logValue(row.Habit, stepValue(row.Habit, row.Log, 1))

	case key.Matches(msg, m.keys.Decrement):
		row, ok := m.Selected()
		if !ok || (row.Habit.Kind != models.KindCount && row.Habit.Kind != models.KindDuration) {
			return m, nil
		}
		return m, m.logValue(row.Habit, stepValue(row.Habit, row.Log, -1))

	case key.Matches(msg, m.keys.Skip):
		if _, ok := m.Selected(); !ok {
			return m, nil
		}
		m.mode = modeSkipReason
		m.reason.SetValue("")
		return m, m.reason.Focus()

	case key.Matches(msg, m.keys.Clear):
		row, ok := m.Selected()
		if !ok || row.Log == nil {
			return m, nil
		}
		return m, m.clearDay(row.Habit)
	}

	return m, nil
}

func (m Model) updateSkipReason(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeBrowse
		m.reason.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		reason := strings.TrimSpace(m.reason.Value())
		if reason == "" {
			m.status = "A reason is required to skip a day"
			return m, nil
		}
		row, ok := m.Selected()
		m.mode = modeBrowse
		m.reason.Blur()
		if !ok {
			return m, nil
		}
		return m, m.skipDay(row.Habit, reason)
	}

	var cmd tea.Cmd
	m.reason, cmd = m.reason.Update(msg)
	return m, cmd
}

func (m Model) moveDate(days int) (tea.Model, tea.Cmd) {
	date, err := utils.ShiftDate(m.date, days)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.date = date
	m.status = ""
	return m, m.subscribe()
}

func nextGroup(g *models.GroupTag) *models.GroupTag {
	positive, negative := models.GroupPositive, models.GroupNegative
	switch {
	case g == nil:
		return &positive
	case *g == models.GroupPositive:
		return &negative
	default:
		return nil
	}
}

// stepValue computes the value one step forward (dir 1) or back (dir -1)
// from the current entry. Yes/no toggles; ratings cycle through options;
// counts and durations move by a fixed step and never drop below zero.
func stepValue(h models.Habit, e *models.LogEntry, dir int) models.Value {
	var current models.Value
	if e != nil && !e.Skipped() {
		current = e.Value
	}

	switch h.Kind {
	case models.KindYesNo:
		b, _ := current.Bool()
		return models.BoolValue(!b)

	case models.KindRating:
		if len(h.Options) == 0 {
			return current
		}
		s, ok := current.Text()
		if !ok {
			return models.StringValue(h.Options[0])
		}
		for i, opt := range h.Options {
			if opt == s {
				return models.StringValue(h.Options[(i+1)%len(h.Options)])
			}
		}
		return models.StringValue(h.Options[0])

	default:
		step := float64(countStep)
		if h.Kind == models.KindDuration {
			step = durationStep
		}
		n, _ := current.Number()
		n += step * float64(dir)
		if n < 0 {
			n = 0
		}
		return models.NumberValue(n)
	}
}

func (m Model) logValue(h models.Habit, v models.Value) tea.Cmd {
	ctx, store, date, reporter := m.ctx, m.store, m.date, m.telemetry
	return func() tea.Msg {
		if _, err := store.LogHabit(ctx, h.ID, date, v, nil); err != nil {
			return mutationMsg{err: err}
		}
		reporter.HabitLogged(ctx, h)
		return mutationMsg{status: fmt.Sprintf("Logged %s: %s", h.Name, v)}
	}
}

func (m Model) skipDay(h models.Habit, reason string) tea.Cmd {
	ctx, store, date, reporter := m.ctx, m.store, m.date, m.telemetry
	return func() tea.Msg {
		if _, err := store.SkipHabit(ctx, h.ID, date, reason); err != nil {
			return mutationMsg{err: err}
		}
		reporter.HabitSkipped(ctx, h)
		return mutationMsg{status: fmt.Sprintf("Skipped %s", h.Name)}
	}
}

func (m Model) clearDay(h models.Habit) tea.Cmd {
	ctx, store, date := m.ctx, m.store, m.date
	return func() tea.Msg {
		if err := store.DeleteLogEntry(ctx, h.ID, date); err != nil {
			return mutationMsg{err: err}
		}
		return mutationMsg{status: fmt.Sprintf("Cleared %s", h.Name)}
	}
}
