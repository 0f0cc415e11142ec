package article

import (
	"regexp"
	"strings"
)

var (
	reImage    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	reLink     = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	reHTTPURL  = regexp.MustCompile(`https?://[^\s)]+`)
	reHeading  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	reOrdered  = regexp.MustCompile(`^(\s*)(\d+)\.\s+(.*)$`)
	reBullet   = regexp.MustCompile(`^(\s*)[-*+]\s+(.*)$`)
	reEscape   = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!|>])`)
	reEmphasis = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
)

// styleMarkdown renders Markdown block by block. Inline markup is reduced to
// plain text before wrapping; styles are applied to whole wrapped lines.
func (r *Renderer) styleMarkdown(text string, width int) []string {
	var (
		out    []string
		inCode bool
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			out = append(out, codeStyle.Render("    "+line))
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, "")
			continue
		}

		switch {
		case isRule(trimmed):
			out = append(out, ruleStyle.Render(strings.Repeat("─", min(width, 24))))
		case reHeading.MatchString(trimmed):
			m := reHeading.FindStringSubmatch(trimmed)
			level := len(m[1])
			prefix := headingPrefix(level)
			for _, l := range wrapPrefixed(r.inline(m[2]), width, prefix, strings.Repeat(" ", visibleLen(prefix))) {
				out = append(out, headingStyle.Render(l))
			}
		case strings.HasPrefix(trimmed, ">"):
			quoted := strings.TrimSpace(strings.TrimLeft(trimmed, "> "))
			if quoted == "" {
				out = append(out, quotePrefix)
				continue
			}
			for _, l := range WrapText(r.inline(quoted), max(1, width-2)) {
				out = append(out, quotePrefix+quoteStyle.Render(l))
			}
		case reBullet.MatchString(line):
			m := reBullet.FindStringSubmatch(line)
			depth := len(m[1]) / 2
			indent := strings.Repeat("  ", depth)
			marker := bulletMarker(depth)
			out = append(out, r.links(wrapPrefixed(r.inline(m[2]), width, indent+marker, indent+strings.Repeat(" ", visibleLen(marker))))...)
		case reOrdered.MatchString(line):
			m := reOrdered.FindStringSubmatch(line)
			indent := strings.Repeat("  ", len(m[1])/2)
			marker := m[2] + ". "
			out = append(out, r.links(wrapPrefixed(r.inline(m[3]), width, indent+marker, indent+strings.Repeat(" ", len(marker))))...)
		default:
			out = append(out, r.links(WrapText(r.inline(trimmed), width))...)
		}
	}
	return out
}

// inline flattens Markdown inline markup: images become labels, links keep
// their target in parentheses.
func (r *Renderer) inline(s string) string {
	s = reImage.ReplaceAllStringFunc(s, func(m string) string {
		if r.opts.ImageMode == ImageModeNone {
			return ""
		}
		alt := strings.TrimSpace(reImage.FindStringSubmatch(m)[1])
		if alt == "" {
			return "[image]"
		}
		return "[image: " + alt + "]"
	})
	s = reLink.ReplaceAllStringFunc(s, func(m string) string {
		sub := reLink.FindStringSubmatch(m)
		text, href := strings.TrimSpace(sub[1]), sub[2]
		switch {
		case text == "" || text == href:
			return href
		case strings.HasPrefix(href, "#"):
			return text
		default:
			return text + " (" + href + ")"
		}
	})
	s = reEmphasis.ReplaceAllString(s, "$2")
	s = reEscape.ReplaceAllString(s, "$1")
	return s
}

func (r *Renderer) links(lines []string) []string {
	if !r.opts.StyleLinks {
		return lines
	}
	for i, line := range lines {
		lines[i] = reHTTPURL.ReplaceAllStringFunc(line, func(m string) string {
			return linkStyle.Render(m)
		})
	}
	return lines
}

func isRule(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 3 {
		return false
	}
	for _, c := range []string{"*", "-", "_"} {
		if strings.Trim(s, c) == "" {
			return true
		}
	}
	return false
}

func headingPrefix(level int) string {
	level = max(1, min(level, len(headingBars)))
	return headingBars[level-1].Render("▌") + strings.Repeat(" ", max(1, level-1))
}

func bulletMarker(depth int) string {
	switch depth {
	case 0:
		return "• "
	case 1:
		return "◦ "
	default:
		return "▪ "
	}
}
