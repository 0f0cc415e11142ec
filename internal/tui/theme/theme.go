package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type Theme struct {
	Title       lipgloss.Style
	ModePill    lipgloss.Style
	OfflinePill lipgloss.Style
	UnreadCount lipgloss.Style
	ActiveLine  lipgloss.Style
	MetaLabel   lipgloss.Style
	MetaValue   lipgloss.Style
	StateIdle   lipgloss.Style
	StateWarn   lipgloss.Style
	StateLoad   lipgloss.Style
	Source      lipgloss.Style

	TitleUnread  lipgloss.Style
	TitleStarred lipgloss.Style
	TitleRead    lipgloss.Style
	TitleBoth    lipgloss.Style
}

func Default() Theme {
	cpRosewater := lipgloss.Color("#f5e0dc")
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:    lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		OfflinePill: lipgloss.NewStyle().Foreground(cpSurface0).Background(cpPeach).Padding(0, 1),
		UnreadCount: lipgloss.NewStyle().Foreground(cpYellow).Bold(true),
		ActiveLine:  lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel:   lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:   lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle:   lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:   lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:   lipgloss.NewStyle().Foreground(cpPeach),
		Source:      lipgloss.NewStyle().Foreground(cpTeal),
		TitleUnread: lipgloss.NewStyle().Bold(true).Foreground(cpText),
		TitleStarred: lipgloss.NewStyle().
			Italic(true).
			Foreground(cpLavender),
		TitleRead: lipgloss.NewStyle().Foreground(cpSubtext0),
		TitleBoth: lipgloss.NewStyle().Bold(true).Italic(true).Foreground(cpRosewater),
	}
}

func (t Theme) StyleArticleTitle(entry selfoss.Entry, title string) string {
	if title == "" {
		return title
	}
	switch {
	case entry.Unread && entry.Starred:
		return t.TitleBoth.Render(title)
	case entry.Unread:
		return t.TitleUnread.Render(title)
	case entry.Starred:
		return t.TitleStarred.Render(title)
	default:
		return t.TitleRead.Render(title)
	}
}

// RenderTags draws each tag in the color configured on the server. Colors
// that are not hex codes fall back to the plain label.
func (t Theme) RenderTags(tags selfoss.Tags) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		style := t.MetaValue
		if strings.HasPrefix(tag.Color, "#") {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color))
		}
		parts = append(parts, style.Render("#"+tag.Name))
	}
	return strings.Join(parts, " ")
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.ActiveLine.Render(line)
}
