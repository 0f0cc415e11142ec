package view

import (
	"strings"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
)

type WrapFunc func(string, int) []string

func DetailMetaLines(entry selfoss.Entry, width int, wrap WrapFunc, th tuitheme.Theme) []string {
	title := EntryTitle(entry)
	lines := make([]string, 0, 12)
	lines = append(lines, wrap(title, width)...)
	lines = append(lines, strings.Repeat("=", max(1, min(width, len([]rune(title))))))
	lines = append(lines, "")

	if entry.SourceTitle != "" {
		lines = append(lines, wrap("Source: "+entry.SourceTitle, width)...)
	}
	lines = append(lines, "Date: "+entry.Datetime.UTC().Format(time.RFC3339))
	if entry.Author != "" {
		lines = append(lines, wrap("Author: "+entry.Author, width)...)
	}
	if len(entry.Tags) > 0 {
		lines = append(lines, "Tags: "+th.RenderTags(entry.Tags))
	}
	state := []string{"read"}
	if entry.Unread {
		state[0] = "unread"
	}
	if entry.Starred {
		state = append(state, "starred")
	}
	lines = append(lines, "State: "+strings.Join(state, ", "))
	if entry.Link != "" {
		lines = append(lines, wrap("URL: "+entry.Link, width)...)
	}
	return lines
}
