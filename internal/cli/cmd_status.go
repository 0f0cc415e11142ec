package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type statusResponse struct {
	IDs    []int64             `json:"ids"`
	Field  selfoss.StatusField `json:"field"`
	Value  bool                `json:"value"`
	Queued bool                `json:"queued"`
}

func newMarkCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "mark <id>...",
		Short: "Mark entries as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, getApp, getOutput, args, selfoss.FieldUnread, unread)
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "Mark as unread instead")
	return cmd
}

func newStarCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "star <id>...",
		Short: "Star entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, getApp, getOutput, args, selfoss.FieldStarred, !off)
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Remove the star instead")
	return cmd
}

func runStatus(cmd *cobra.Command, getApp func() *App, getOutput func() OutputFormat, args []string, field selfoss.StatusField, value bool) error {
	app, err := requireApp(getApp)
	if err != nil {
		return err
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := app.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	queued, err := app.service.SetStatus(ctx, ids, field, value)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if getOutput() == OutputJSON {
		return writeJSON(out, statusResponse{IDs: ids, Field: field, Value: value, Queued: queued})
	}
	msg := fmt.Sprintf("%s %d %s", statusVerb(field, value), len(ids), pluralEntries(len(ids)))
	if queued {
		msg += " (queued until the server is reachable)"
	}
	fmt.Fprintln(out, msg)
	return nil
}

func statusVerb(field selfoss.StatusField, value bool) string {
	switch {
	case field == selfoss.FieldUnread && value:
		return "Marked unread:"
	case field == selfoss.FieldUnread:
		return "Marked read:"
	case value:
		return "Starred:"
	default:
		return "Unstarred:"
	}
}

func pluralEntries(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
