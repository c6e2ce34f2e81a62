package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	if err := tui.Unlock(ctx.Ctx, ctx.Store); err != nil {
		return err
	}

	ctx.PerformAutomaticBackup()
	ctx.Telemetry.AppOpen(ctx.Ctx)

	model := tui.NewModel(ctx.Ctx, ctx.Store, tui.Options{
		Now:       ctx.Now,
		Telemetry: ctx.Telemetry,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx.Ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui exited with error: %w", err)
	}
	return nil
}
