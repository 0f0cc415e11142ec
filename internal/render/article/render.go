// Package article turns entry HTML into terminal lines. Content is converted
// to Markdown first, then styled and wrapped line by line.
package article

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	nethtml "golang.org/x/net/html"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type ImageMode int

const (
	ImageModeLabel ImageMode = iota
	ImageModeNone
)

type Options struct {
	StyleLinks bool
	ImageMode  ImageMode
}

var DefaultOptions = Options{
	StyleLinks: true,
	ImageMode:  ImageModeLabel,
}

type Renderer struct {
	converter *md.Converter
	opts      Options
}

func NewRenderer(opts Options) *Renderer {
	if opts.ImageMode != ImageModeLabel && opts.ImageMode != ImageModeNone {
		opts.ImageMode = DefaultOptions.ImageMode
	}
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
	})
	conv.Remove("script", "style", "noscript")
	if opts.ImageMode == ImageModeNone {
		conv.Remove("img")
	}
	return &Renderer{converter: conv, opts: opts}
}

// Markdown converts the entry content. Unconvertible HTML falls back to its
// text with tags stripped.
func (r *Renderer) Markdown(entry selfoss.Entry) string {
	content := strings.TrimSpace(entry.Content)
	if content == "" {
		return ""
	}
	out, err := r.converter.ConvertString(content)
	if err != nil {
		return strings.TrimSpace(plainText(content))
	}
	return strings.TrimSpace(out)
}

// Lines renders the entry content wrapped to width.
func (r *Renderer) Lines(entry selfoss.Entry, width int) []string {
	text := r.Markdown(entry)
	if text == "" {
		return nil
	}
	return trimBlankLines(r.styleMarkdown(text, max(1, width)))
}

// ImageURLs lists the http(s) image sources of an HTML fragment in document
// order without duplicates.
func ImageURLs(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	z := nethtml.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			return out
		}
		if tt != nethtml.StartTagToken && tt != nethtml.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "img" {
			continue
		}
		for _, attr := range tok.Attr {
			if attr.Key != "src" {
				continue
			}
			src := strings.TrimSpace(attr.Val)
			u, err := url.Parse(src)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				continue
			}
			if _, ok := seen[src]; ok {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
}

func plainText(raw string) string {
	doc, err := nethtml.Parse(strings.NewReader(raw))
	if err != nil {
		return html.UnescapeString(raw)
	}
	var b strings.Builder
	var walk func(*nethtml.Node)
	walk = func(n *nethtml.Node) {
		if n.Type == nethtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == nethtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

func trimBlankLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(stripANSI(lines[start])) == "" {
		start++
	}
	end := len(lines) - 1
	for end >= start && strings.TrimSpace(stripANSI(lines[end])) == "" {
		end--
	}
	if end < start {
		return nil
	}
	out := make([]string, 0, end-start+1)
	prevBlank := false
	for i := start; i <= end; i++ {
		blank := strings.TrimSpace(stripANSI(lines[i])) == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, lines[i])
		prevBlank = blank
	}
	return out
}

// WrapText breaks on spaces, splitting words longer than width.
func WrapText(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var (
		out  []string
		line string
	)
	for _, word := range words {
		for visibleLen(word) > width {
			if line != "" {
				out = append(out, line)
				line = ""
			}
			r := []rune(word)
			out = append(out, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case line == "":
			line = word
		case visibleLen(line)+1+visibleLen(word) <= width:
			line += " " + word
		default:
			out = append(out, line)
			line = word
		}
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}

func wrapPrefixed(text string, width int, firstPrefix, restPrefix string) []string {
	firstWidth := max(1, width-visibleLen(firstPrefix))
	lines := WrapText(text, firstWidth)
	if len(lines) == 0 {
		return nil
	}
	out := []string{firstPrefix + lines[0]}
	if len(lines) > 1 {
		rest := WrapText(strings.Join(lines[1:], " "), max(1, width-visibleLen(restPrefix)))
		for _, l := range rest {
			out = append(out, restPrefix+l)
		}
	}
	return out
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

func stripANSI(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
