package view

import (
	"strings"
	"time"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
)

type ListRenderInput struct {
	State entrylist.State
	Start int
	End   int
	Now   time.Time
	Width int
}

// RenderListBody renders the [Start, End) window of the loaded entries.
func RenderListBody(in ListRenderInput, th tuitheme.Theme) string {
	entries := in.State.Entries
	if len(entries) == 0 || in.Start < 0 || in.Start >= in.End {
		return ""
	}
	end := min(in.End, len(entries))
	var b strings.Builder
	for _, entry := range entries[in.Start:end] {
		b.WriteString(RenderEntryLine(EntryLineParams{
			Entry:    entry,
			Now:      in.Now,
			Active:   entry.ID == in.State.SelectedID,
			Expanded: in.State.IsExpanded(entry.ID),
			Width:    in.Width,
		}, th))
		b.WriteString("\n")
	}
	return b.String()
}
