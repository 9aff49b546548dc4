package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(runner, logger).Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command. A config file, when present, replaces the runner's configuration
// before any command runs.
func newApp(r *Runner, logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:    "rolx",
		Usage:   "Stream, queue and shape music from the terminal",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("ROLX_CONFIG"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			path := cmd.String("config")
			if _, err := os.Stat(path); err != nil {
				return ctx, nil
			}

			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.UseConfig(config, path)
			shared.SetLogLevel(logger, shared.ParseLogLevel(config.App.LogLevel))
			return ctx, nil
		},
		Commands: r.register(),
	}
}
