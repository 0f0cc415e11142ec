package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/app"
)

type syncResponse struct {
	Replayed int   `json:"replayed"`
	Dropped  int   `json:"dropped"`
	Saved    int   `json:"saved"`
	Pruned   int64 `json:"pruned"`
	TookMS   int64 `json:"tookMs"`
}

func newSyncCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued changes and refresh the offline cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(getApp)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.client.Login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			start := time.Now()
			res, err := a.service.Sync(ctx)
			if err != nil {
				return err
			}
			return writeSyncResult(cmd, getOutput(), res, time.Since(start))
		},
	}
}

func newRefreshCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [source-id]",
		Short: "Ask the server to update sources, then sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(getApp)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.client.Login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			start := time.Now()
			var res app.SyncResult
			if len(args) == 1 {
				id, perr := strconv.ParseInt(args[0], 10, 64)
				if perr != nil || id <= 0 {
					return fmt.Errorf("%w: invalid source id %q", ErrInvalidInput, args[0])
				}
				res, err = a.service.RefreshSource(ctx, id)
			} else {
				res, err = a.service.RefreshAll(ctx)
			}
			if err != nil {
				return err
			}
			return writeSyncResult(cmd, getOutput(), res, time.Since(start))
		},
	}
}

func writeSyncResult(cmd *cobra.Command, format OutputFormat, res app.SyncResult, took time.Duration) error {
	out := cmd.OutOrStdout()
	if format == OutputJSON {
		return writeJSON(out, syncResponse{
			Replayed: res.Replayed,
			Dropped:  res.Dropped,
			Saved:    res.Saved,
			Pruned:   res.Pruned,
			TookMS:   took.Milliseconds(),
		})
	}
	writeSyncTable(out, res, took)
	return nil
}
