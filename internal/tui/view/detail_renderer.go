package view

import (
	"strings"

	"github.com/glabrego/selfoss-cli/internal/render/article"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
)

func DetailLines(
	entry selfoss.Entry,
	contentWidth int,
	horizontalMargin int,
	renderer *article.Renderer,
	wrap WrapFunc,
	th tuitheme.Theme,
) []string {
	lines := DetailMetaLines(entry, contentWidth, wrap, th)
	if content := renderer.Lines(entry, contentWidth); len(content) > 0 {
		lines = append(lines, "")
		lines = append(lines, content...)
	}
	return leftPadLines(lines, horizontalMargin)
}

func DetailMaxTop(linesLen, bodyHeight int) int {
	maxTop := linesLen - bodyHeight
	if maxTop < 0 {
		return 0
	}
	return maxTop
}

func RenderDetailLines(lines []string, top, maxLines int) string {
	if len(lines) == 0 {
		return ""
	}
	if top < 0 {
		top = 0
	}
	if top > len(lines)-1 {
		top = len(lines) - 1
	}
	end := len(lines)
	if maxLines > 0 && top+maxLines < end {
		end = top + maxLines
	}
	return strings.Join(lines[top:end], "\n") + "\n"
}

func leftPadLines(lines []string, padding int) []string {
	if padding <= 0 || len(lines) == 0 {
		return lines
	}
	prefix := strings.Repeat(" ", padding)
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		out[i] = prefix + line
	}
	return out
}
