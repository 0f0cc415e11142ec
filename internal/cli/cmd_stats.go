package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type statsResponse struct {
	selfoss.Stats
	Cached bool `json:"cached"`
}

func newStatsCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(getApp)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := app.Login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			stats, cached, err := app.service.Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutput() == OutputJSON {
				return writeJSON(out, statsResponse{Stats: stats, Cached: cached})
			}
			writeStatsTable(out, stats, cached)
			return nil
		},
	}
}
