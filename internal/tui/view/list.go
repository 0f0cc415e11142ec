package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type EntryLineParams struct {
	Entry    selfoss.Entry
	Now      time.Time
	Active   bool
	Expanded bool
	Width    int
}

func RenderEntryLine(p EntryLineParams, th tuitheme.Theme) string {
	cursorMarker := " "
	if p.Active {
		cursorMarker = ">"
	}
	flag := " "
	switch {
	case p.Expanded:
		flag = "▾"
	case p.Entry.Starred:
		flag = "*"
	case p.Entry.Unread:
		flag = "•"
	}

	prefix := fmt.Sprintf(" %s%s ", cursorMarker, flag)
	dateLabel := RelativeTimeLabel(p.Now, p.Entry.Datetime)
	source := truncateRunes(strings.TrimSpace(p.Entry.SourceTitle), 18)
	available := p.Width - visibleLen(prefix) - visibleLen(source) - visibleLen(dateLabel) - 3
	if available < 1 {
		available = 1
	}

	label := truncateRunes(EntryTitle(p.Entry), available)
	styledTitle := th.StyleArticleTitle(p.Entry, label)
	left := prefix + th.Source.Render(source) + "  " + styledTitle
	gap := p.Width - visibleLen(left) - visibleLen(dateLabel)
	if gap < 1 {
		gap = 1
	}
	return th.RenderActiveLine(p.Active, left+strings.Repeat(" ", gap)+dateLabel)
}

func EntryTitle(entry selfoss.Entry) string {
	if title := strings.TrimSpace(entry.Title); title != "" {
		return title
	}
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	return "(untitled)"
}

func RelativeTimeLabel(now, then time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if then.IsZero() {
		return "unknown"
	}
	if now.Sub(then) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(then, now, "ago", "from now")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSIText(s))
}

func stripANSIText(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
