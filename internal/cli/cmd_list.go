package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/logging"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

func newListCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	var (
		itemType string
		tag      string
		source   int64
		search   string
		pages    int
		online   bool
		sync     bool
	)

	cmd := &cobra.Command{
		Use:   "list [location]",
		Short: "List entries",
		Example: "  selfoss list /unread/tag-news\n" +
			"  selfoss list --type starred --pages 2\n" +
			"  selfoss list --search golang --online",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(getApp)
			if err != nil {
				return err
			}
			if pages < 1 {
				return fmt.Errorf("%w: --pages must be positive", ErrInvalidInput)
			}
			loc, err := listLocation(args, itemType, tag, source, search)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := app.Login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if sync {
				if _, err := app.service.Sync(ctx); err != nil {
					if !selfoss.IsNetworkError(err) || !app.cfg.OfflineEnabled {
						return fmt.Errorf("sync: %w", err)
					}
					app.logger.Warn("sync skipped, server unreachable", "err", err)
				}
			}

			behavior := app.Behavior()
			if online {
				behavior.OfflineEnabled = false
			}
			ctrl := entrylist.New(entrylist.Options{
				Items:    app.client,
				Offline:  app.repo,
				Sync:     app.service,
				Router:   fixedRouter{loc: loc},
				View:     noticeView{log: app.logger},
				Counters: app.counters,
				Behavior: behavior,
				Logger:   logging.Component(app.logger, "entrylist"),
			})
			defer ctrl.Close()

			if err := ctrl.Reload(ctx, entrylist.ReloadOptions{WaitForSync: true, EntryID: loc.EntryID}); err != nil {
				return err
			}
			for i := 1; i < pages; i++ {
				snap := ctrl.Snapshot()
				if !snap.HasMore && !snap.OfflineExhausted {
					break
				}
				if err := ctrl.LoadMore(ctx); err != nil {
					return err
				}
			}

			snap := ctrl.Snapshot()
			out := cmd.OutOrStdout()
			if getOutput() == OutputJSON {
				return writeJSON(out, listResponse{
					Location: loc.Path(),
					Online:   ctrl.Online(),
					HasMore:  snap.HasMore,
					Entries:  snap.Entries,
				})
			}
			writeEntriesTable(out, snap.Entries, time.Now())
			if snap.HasMore {
				fmt.Fprintln(out, "(more entries available, use --pages)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&itemType, "type", "", "Entry type: newest, unread, starred")
	cmd.Flags().StringVar(&tag, "tag", "", "Only entries with this tag")
	cmd.Flags().Int64Var(&source, "source", 0, "Only entries from this source id")
	cmd.Flags().StringVar(&search, "search", "", "Full text search")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().BoolVar(&online, "online", false, "Bypass the offline cache")
	cmd.Flags().BoolVar(&sync, "sync", false, "Sync the offline cache before listing")
	return cmd
}

type listResponse struct {
	Location string          `json:"location"`
	Online   bool            `json:"online"`
	HasMore  bool            `json:"hasMore"`
	Entries  []selfoss.Entry `json:"entries"`
}

// listLocation combines a location argument with the filter flags. Flags win
// over the parts of the location they name.
func listLocation(args []string, itemType, tag string, source int64, search string) (entrylist.Location, error) {
	loc := entrylist.Location{Type: selfoss.TypeNewest}
	if len(args) == 1 {
		parsed, err := entrylist.ParseLocation(args[0])
		if err != nil {
			return entrylist.Location{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		loc = parsed
	}
	if itemType != "" {
		t, err := selfoss.ParseItemType(itemType)
		if err != nil {
			return entrylist.Location{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		loc.Type = t
	}
	if tag != "" && source != 0 {
		return entrylist.Location{}, fmt.Errorf("%w: --tag and --source are mutually exclusive", ErrInvalidInput)
	}
	if tag != "" {
		loc.Tag, loc.Source = tag, 0
	}
	if source != 0 {
		loc.Source, loc.Tag = source, ""
	}
	if search != "" {
		loc.Search = search
	}
	return loc, nil
}

// fixedRouter serves a single location. A rejected session surfaces as the
// command's error, so there is nothing to redirect to.
type fixedRouter struct {
	loc entrylist.Location
}

func (r fixedRouter) Location() entrylist.Location             { return r.loc }
func (fixedRouter) RedirectToLogin(entrylist.Location, string) {}

// noticeView logs notices. Scrolling has no meaning outside the TUI.
type noticeView struct {
	log *slog.Logger
}

func (noticeView) ScrollIntoView(int64) {}
func (noticeView) Focus(int64)          {}
func (noticeView) ScrollToTop()         {}

func (v noticeView) Notify(n entrylist.Notice) {
	if n.Level == entrylist.NoticeError {
		v.log.Warn(n.Text)
		return
	}
	v.log.Info(n.Text)
}
