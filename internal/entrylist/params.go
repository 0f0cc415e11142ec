package entrylist

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

// Cursor is the exclusive lower bound of the next page: entries strictly older
// than (Datetime, ID) in (datetime DESC, id DESC) order.
type Cursor struct {
	Datetime time.Time
	ID       int64
}

func (c Cursor) IsZero() bool {
	return c.Datetime.IsZero() && c.ID == 0
}

// Advance moves the cursor past the last loaded entry. An empty list resets it.
func (c *Cursor) Advance(entries []selfoss.Entry) {
	if len(entries) == 0 {
		c.Reset()
		return
	}
	last := entries[len(entries)-1]
	c.Datetime = last.Datetime
	c.ID = last.ID
}

func (c *Cursor) Reset() {
	*c = Cursor{}
}

// FetchParams describe which list is shown and where the next page starts.
type FetchParams struct {
	Type   selfoss.ItemType
	Tag    string
	Source int64
	Search string
	Cursor Cursor
	// SourcesNav asks the server to embed sidebar statistics in the page.
	SourcesNav bool
}

// SameFilter reports whether both params select the same list.
func (p FetchParams) SameFilter(o FetchParams) bool {
	return p.normalizedType() == o.normalizedType() &&
		p.Tag == o.Tag &&
		p.Source == o.Source &&
		p.Search == o.Search
}

// WithFilter returns p switched to the filter of next. The cursor survives only
// when the filter is unchanged.
func (p FetchParams) WithFilter(next FetchParams) FetchParams {
	out := next
	out.Cursor = p.Cursor
	if !p.SameFilter(next) {
		out.Cursor.Reset()
	}
	return out
}

func (p FetchParams) HasServerOnlyFilter() bool {
	return p.Tag != "" || p.Source != 0 || p.Search != ""
}

func (p FetchParams) Query(limit int) selfoss.ItemsQuery {
	return selfoss.ItemsQuery{
		Type:         p.normalizedType(),
		Tag:          p.Tag,
		Source:       p.Source,
		Search:       p.Search,
		FromDatetime: p.Cursor.Datetime,
		FromID:       p.Cursor.ID,
		Limit:        limit,
		SourcesNav:   p.SourcesNav,
	}
}

func (p FetchParams) normalizedType() selfoss.ItemType {
	if p.Type == "" {
		return selfoss.TypeNewest
	}
	return p.Type
}

// Location is the routed view: a filter plus an optional deep-linked entry.
// Paths look like /unread/tag-news, /newest/source-3/42 or /starred/all?search=go.
type Location struct {
	Type    selfoss.ItemType
	Tag     string
	Source  int64
	Search  string
	EntryID int64
}

func (l Location) Params() FetchParams {
	return FetchParams{Type: l.Type, Tag: l.Tag, Source: l.Source, Search: l.Search}
}

func (l Location) Path() string {
	typ := l.Type
	if typ == "" {
		typ = selfoss.TypeNewest
	}
	category := "all"
	switch {
	case l.Tag != "":
		category = "tag-" + url.PathEscape(l.Tag)
	case l.Source != 0:
		category = "source-" + strconv.FormatInt(l.Source, 10)
	}
	path := "/" + string(typ) + "/" + category
	if l.EntryID != 0 {
		path += "/" + strconv.FormatInt(l.EntryID, 10)
	}
	if l.Search != "" {
		path += "?" + url.Values{"search": {l.Search}}.Encode()
	}
	return path
}

func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	var loc Location
	loc.Search = u.Query().Get("search")

	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(parts) > 3 {
		return Location{}, fmt.Errorf("parse location %q: too many segments", raw)
	}
	if parts[0] != "" {
		loc.Type, err = selfoss.ParseItemType(parts[0])
		if err != nil {
			return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
		}
	} else {
		loc.Type = selfoss.TypeNewest
	}

	if len(parts) > 1 {
		category := parts[1]
		switch {
		case category == "all":
		case strings.HasPrefix(category, "tag-"):
			loc.Tag, err = url.PathUnescape(strings.TrimPrefix(category, "tag-"))
			if err != nil {
				return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
			}
		case strings.HasPrefix(category, "source-"):
			loc.Source, err = strconv.ParseInt(strings.TrimPrefix(category, "source-"), 10, 64)
			if err != nil {
				return Location{}, fmt.Errorf("parse location %q: invalid source id", raw)
			}
		default:
			return Location{}, fmt.Errorf("parse location %q: unknown category %q", raw, category)
		}
	}
	if len(parts) > 2 {
		loc.EntryID, err = strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Location{}, fmt.Errorf("parse location %q: invalid entry id", raw)
		}
	}
	return loc, nil
}
