package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/desertthunder/rolx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive player with its own in-process playback core.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(r.config.App.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.App.LogLevel))
	r.SetLogger(fileLogger)

	c, err := r.newCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.start(ctx, c, !cmd.Bool("mute"))

	model := ui.NewModel(ctx, ui.Options{
		Player:      c.engine,
		Queue:       c.queue,
		Equalizer:   c.graph,
		Requests:    c.session,
		Catalog:     r.catalogService(ctx),
		SearchLimit: int(cmd.Int("limit")),
	})
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
