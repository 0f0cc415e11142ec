package view

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
)

func Toolbar(inDetail bool) string {
	if inDetail {
		return "j/k scroll | n/p next/prev | space read+next | m/s toggle | v open | y copy | esc close | ? help"
	}
	return "j/k move | enter open | space read+next | m/s toggle | a/u/* filter | / search | L more | r sync | ? help"
}

// Header shows the location and the unread counters of the current view.
func Header(loc entrylist.Location, counters entrylist.Counters, online bool, th tuitheme.Theme) string {
	parts := []string{
		th.Title.Render("selfoss"),
		th.ModePill.Render(loc.Path()),
		th.MetaLabel.Render("unread") + " " + th.UnreadCount.Render(humanize.Comma(int64(counters.Unread))),
		th.MetaLabel.Render("starred") + " " + th.MetaValue.Render(humanize.Comma(int64(counters.Starred))),
	}
	switch {
	case loc.Tag != "":
		parts = append(parts, th.MetaLabel.Render("tag")+" "+th.UnreadCount.Render(fmt.Sprintf("%d", counters.UnreadByTag[loc.Tag])))
	case loc.Source != 0:
		parts = append(parts, th.MetaLabel.Render("source")+" "+th.UnreadCount.Render(fmt.Sprintf("%d", counters.UnreadBySource[loc.Source])))
	}
	if !online {
		parts = append(parts, th.OfflinePill.Render("offline"))
	}
	return strings.Join(parts, " ")
}

func Footer(mode string, shown int, hasMore, offlineExhausted bool, th tuitheme.Theme) string {
	more := "end"
	switch {
	case hasMore:
		more = "more (L)"
	case offlineExhausted:
		more = "cache end (O: older online)"
	}
	parts := []string{
		th.MetaLabel.Render("mode") + " " + th.MetaValue.Render(mode),
		th.MetaValue.Render(fmt.Sprintf("%d shown", shown)),
		th.MetaValue.Render(more),
	}
	return strings.Join(parts, " • ")
}

// Message is the status line. A notice outranks the transient status and
// retryable notices advertise the retry key.
func Message(loading entrylist.LoadingState, status string, notice *entrylist.Notice, th tuitheme.Theme) string {
	state, stateLabel := "idle", th.StateIdle.Render("state")
	main := "Ready"
	if status != "" {
		main = status
	}
	if loading == entrylist.Loading {
		state, stateLabel = "loading", th.StateLoad.Render("state")
	}
	if notice != nil {
		main = notice.Text
		if notice.Level == entrylist.NoticeError {
			state, stateLabel = "warning", th.StateWarn.Render("state")
		}
		if notice.Retryable {
			main += " (R to retry)"
		}
	}
	return fmt.Sprintf("%s: %s | %s", stateLabel, state, th.MetaValue.Render(main))
}

func SearchPrompt(query string) string {
	return "search: " + query + "█"
}
