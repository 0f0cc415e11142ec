package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/config"
	"github.com/glabrego/selfoss-cli/internal/logging"
)

// NewRootCmd builds the command tree. The App is created lazily in
// PersistentPreRunE so flags can override the loaded configuration.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
		logLevel   string
		output     string
		outFmt     OutputFormat
		app        *App
	)
	output = string(OutputTable)

	getApp := func() *App { return app }
	getOutput := func() OutputFormat { return outFmt }

	cmd := &cobra.Command{
		Use:           "selfoss",
		Short:         "Terminal client for a selfoss feed reader",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			parsedFmt, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			outFmt = parsedFmt
			if !requiresApp(cmd) || app != nil {
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}

			logger, logClose, err := newLogger(cfg, usesTerminal(cmd), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := NewApp(cmd.Context(), cfg, logger, logClose)
			if err != nil {
				if logClose != nil {
					_ = logClose.Close()
				}
				return err
			}
			app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				_ = app.Close()
				app = nil
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default $XDG_CONFIG_HOME/selfoss-cli/config.toml)")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite offline cache path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", output, "Output format: table, json")

	tuiCmd := newTUICmd(getApp)
	cmd.RunE = tuiCmd.RunE

	cmd.AddCommand(tuiCmd)
	cmd.AddCommand(newListCmd(getApp, getOutput))
	cmd.AddCommand(newShowCmd(getApp, getOutput))
	cmd.AddCommand(newMarkCmd(getApp, getOutput))
	cmd.AddCommand(newStarCmd(getApp, getOutput))
	cmd.AddCommand(newSyncCmd(getApp, getOutput))
	cmd.AddCommand(newRefreshCmd(getApp, getOutput))
	cmd.AddCommand(newStatsCmd(getApp, getOutput))

	return cmd
}

// newLogger writes to stderr for plain commands. The TUI owns the terminal,
// so it logs to the configured file instead.
func newLogger(cfg config.Config, terminal bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !terminal {
		return logging.New(stderr, level), nil, nil
	}
	logger, closer, err := logging.OpenFile(cfg.LogPath, level)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger, closer, nil
}

func usesTerminal(cmd *cobra.Command) bool {
	return cmd.Name() == "tui" || !cmd.HasParent()
}

func requiresApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		name := c.Name()
		if name == "help" || name == "completion" {
			return false
		}
	}
	return true
}

func requireApp(getApp func() *App) (*App, error) {
	app := getApp()
	if app == nil {
		return nil, errors.New("app not initialized")
	}
	return app, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		PrintError(err)
		return ErrorExitCode(err)
	}
	return 0
}
