package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.viewHeader(), m.viewHabits()}
	if m.mode == modeSkipReason {
		sections = append(sections, "Skip reason: "+m.reason.View())
	}
	if m.err != nil {
		sections = append(sections, errorStyle.Render("Error: "+m.err.Error()))
	} else if m.status != "" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	sections = append(sections, m.help.View(m.keys))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) viewHeader() string {
	label := m.date
	if t, err := time.Parse(constants.DateFormat, m.date); err == nil {
		label = t.Format("Mon 02 Jan 2006")
	}
	if m.date == utils.Today(m.now()) {
		label += " (today)"
	}

	filter := "all"
	if m.group != nil {
		filter = string(*m.group)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(constants.AppName+" · "+label),
		filterStyle.Render("filter: "+filter),
	) + "\n"
}

func (m Model) viewHabits() string {
	if !m.loaded {
		return mutedStyle.Render("Loading...")
	}
	if len(m.rows) == 0 {
		return mutedStyle.Render("No active habits. Add one with: tally habit add <name>")
	}

	var b strings.Builder
	lastCategory := ""
	for i, row := range m.rows {
		if row.Habit.CategoryID != lastCategory || i == 0 {
			lastCategory = row.Habit.CategoryID
			cat := m.categories[lastCategory]
			name := cat.Name
			if name == "" {
				name = lastCategory
			}
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(categoryStyle(cat.Color).Render(name))
			b.WriteString("\n")
		}

		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%s %-28s %s", cursor, marker(row.Log), row.Habit.Name, describe(row.Habit, row.Log))
		if !utils.IsDue(row.Habit, m.date) {
			line += mutedStyle.Render("  not due")
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func marker(e *models.LogEntry) string {
	switch {
	case e == nil:
		return "[ ]"
	case e.Skipped():
		return "[~]"
	}
	if b, ok := e.Value.Bool(); ok && !b {
		return "[-]"
	}
	return "[x]"
}

func describe(h models.Habit, e *models.LogEntry) string {
	if e == nil {
		return ""
	}
	if e.Skipped() {
		return "skipped: " + e.SkippedReason
	}
	if _, ok := e.Value.Bool(); ok {
		return ""
	}
	s := e.Value.String()
	if h.Unit != "" && s != "" {
		s += " " + h.Unit
	}
	return s
}
