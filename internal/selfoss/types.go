package selfoss

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ItemType is the list filter understood by the items endpoint.
type ItemType string

const (
	TypeNewest  ItemType = "newest"
	TypeUnread  ItemType = "unread"
	TypeStarred ItemType = "starred"
)

func ParseItemType(raw string) (ItemType, error) {
	switch ItemType(raw) {
	case TypeNewest, TypeUnread, TypeStarred:
		return ItemType(raw), nil
	case "", "all":
		return TypeNewest, nil
	}
	return "", fmt.Errorf("unknown item type %q", raw)
}

// Entry is a single feed item as returned by selfoss.
type Entry struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source"`
	SourceTitle string    `json:"sourcetitle"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	Link        string    `json:"link"`
	Datetime    time.Time `json:"datetime"`
	UpdateTime  time.Time `json:"updatetime"`
	WordCount   int       `json:"wordCount"`
	Unread      bool      `json:"unread"`
	Starred     bool      `json:"starred"`
	Tags        Tags      `json:"tags"`
	Thumbnail   string    `json:"thumbnail"`
	Icon        string    `json:"icon"`
}

type Tag struct {
	Name  string
	Color string
}

// Tags keeps the tag → color mapping in the order the server sent it.
type Tags []Tag

func (t Tags) Names() []string {
	out := make([]string, 0, len(t))
	for _, tag := range t {
		out = append(out, tag.Name)
	}
	return out
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*t = nil
		return nil
	}
	// Entries without tags are serialized as an empty PHP array.
	if bytes.Equal(trimmed, []byte("[]")) {
		*t = Tags{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode tags: expected object, got %v", tok)
	}

	out := Tags{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode tags: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode tags: unexpected key %v", keyTok)
		}
		var color string
		if err := dec.Decode(&color); err != nil {
			return fmt.Errorf("decode tag %q color: %w", name, err)
		}
		out = append(out, Tag{Name: name, Color: color})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	*t = out
	return nil
}

func (t Tags) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, tag := range t {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(tag.Name)
		if err != nil {
			return nil, err
		}
		color, err := json.Marshal(tag.Color)
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(color)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// ItemsQuery is the wire form of a page request.
type ItemsQuery struct {
	Type         ItemType
	Tag          string
	Source       int64
	Search       string
	FromDatetime time.Time
	FromID       int64
	Limit        int
	ExtraIDs     []int64
	SourcesNav   bool
}

// HasServerOnlyFilter reports whether the query needs tag, source or search support.
func (q ItemsQuery) HasServerOnlyFilter() bool {
	return q.Tag != "" || q.Source != 0 || q.Search != ""
}

type Stats struct {
	Total   int `json:"total"`
	Unread  int `json:"unread"`
	Starred int `json:"starred"`
}

type SourceStats struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Unread int    `json:"unread"`
}

type TagStats struct {
	Tag    string `json:"tag"`
	Color  string `json:"color"`
	Unread int    `json:"unread"`
}

// EntriesPage is one page of the items endpoint. Stats, Sources and Tags are only
// present when the server was asked to embed navigation data.
type EntriesPage struct {
	Entries []Entry       `json:"entries"`
	HasMore bool          `json:"hasMore"`
	Stats   *Stats        `json:"stats,omitempty"`
	Sources []SourceStats `json:"sources,omitempty"`
	Tags    []TagStats    `json:"tags,omitempty"`
}

// StatusField names the entry flag a queued status change applies to.
type StatusField string

const (
	FieldUnread  StatusField = "unread"
	FieldStarred StatusField = "starred"
)

// StatusUpdate is a flag change that still has to reach the server.
type StatusUpdate struct {
	Seq      int64
	EntryID  int64
	Field    StatusField
	Value    bool
	QueuedAt time.Time
}
