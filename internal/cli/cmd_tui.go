package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	"github.com/glabrego/selfoss-cli/internal/tui"
)

func newTUICmd(getApp func() *App) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "tui [location]",
		Short: "Browse entries interactively",
		Example: "  selfoss tui\n" +
			"  selfoss /unread/tag-news\n" +
			"  selfoss tui /starred/all --no-sync",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(getApp)
			if err != nil {
				return err
			}
			if !isTerminal(os.Stdout) || !isTerminal(os.Stdin) {
				return fmt.Errorf("%w: the interactive view needs a terminal; use `selfoss list` instead", ErrInvalidInput)
			}

			start := entrylist.Location{Type: selfoss.TypeUnread}
			if len(args) == 1 {
				start, err = entrylist.ParseLocation(args[0])
				if err != nil {
					return fmt.Errorf("%w: %v", ErrInvalidInput, err)
				}
			}

			ctx := cmd.Context()
			if err := app.Login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			app.logger.Info("starting tui", "location", start.Path(), "offline", app.cfg.OfflineEnabled)
			return tui.Run(ctx, tui.Options{
				Items:       app.client,
				Offline:     app.repo,
				Syncer:      app.service,
				Session:     app,
				Counters:    app.counters,
				Behavior:    app.Behavior(),
				Logger:      app.logger,
				Start:       start,
				SyncOnStart: app.cfg.OfflineEnabled && !noSync,
			})
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip the startup sync of the offline cache")
	return cmd
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
