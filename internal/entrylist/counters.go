package entrylist

import (
	"sync"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

// Counters are the aggregate numbers shown next to filters, tags and sources.
type Counters struct {
	Unread         int
	Starred        int
	UnreadByTag    map[string]int
	UnreadBySource map[int64]int
}

func (c Counters) clone() Counters {
	out := Counters{Unread: c.Unread, Starred: c.Starred}
	out.UnreadByTag = make(map[string]int, len(c.UnreadByTag))
	for k, v := range c.UnreadByTag {
		out.UnreadByTag[k] = v
	}
	out.UnreadBySource = make(map[int64]int, len(c.UnreadBySource))
	for k, v := range c.UnreadBySource {
		out.UnreadBySource[k] = v
	}
	return out
}

// Diff holds signed deltas for the counters.
type Diff struct {
	Unread  int
	Starred int
	Tags    map[string]int
	Sources map[int64]int
}

// unreadDiff gives every entry's tags and source the same signed delta.
func unreadDiff(entries []selfoss.Entry, delta int) Diff {
	d := Diff{Tags: map[string]int{}, Sources: map[int64]int{}}
	for _, e := range entries {
		d.Unread += delta
		for _, tag := range e.Tags {
			d.Tags[tag.Name] += delta
		}
		if e.SourceID != 0 {
			d.Sources[e.SourceID] += delta
		}
	}
	return d
}

func starredDiff(delta int) Diff {
	return Diff{Starred: delta}
}

// flagDiff is the counter change for setting field of e to value.
func flagDiff(e selfoss.Entry, field selfoss.StatusField, value bool) Diff {
	delta := -1
	if value {
		delta = 1
	}
	if field == selfoss.FieldStarred {
		return starredDiff(delta)
	}
	return unreadDiff([]selfoss.Entry{e}, delta)
}

func (d Diff) Invert() Diff {
	out := Diff{Unread: -d.Unread, Starred: -d.Starred}
	if d.Tags != nil {
		out.Tags = make(map[string]int, len(d.Tags))
		for k, v := range d.Tags {
			out.Tags[k] = -v
		}
	}
	if d.Sources != nil {
		out.Sources = make(map[int64]int, len(d.Sources))
		for k, v := range d.Sources {
			out.Sources[k] = -v
		}
	}
	return out
}

func (d Diff) IsZero() bool {
	if d.Unread != 0 || d.Starred != 0 {
		return false
	}
	for _, v := range d.Tags {
		if v != 0 {
			return false
		}
	}
	for _, v := range d.Sources {
		if v != 0 {
			return false
		}
	}
	return true
}

// CounterStore owns the counters. Readers get copies; only Apply and Reset
// change them. Apply never clamps, so applying a Diff and then its inverse
// always restores the previous numbers.
type CounterStore struct {
	mu     sync.Mutex
	c      Counters
	subs   map[int]func(Counters)
	nextID int
}

func NewCounterStore() *CounterStore {
	return &CounterStore{
		c:    Counters{UnreadByTag: map[string]int{}, UnreadBySource: map[int64]int{}},
		subs: map[int]func(Counters){},
	}
}

func (s *CounterStore) Apply(d Diff) {
	if d.IsZero() {
		return
	}
	s.mu.Lock()
	s.c.Unread += d.Unread
	s.c.Starred += d.Starred
	for tag, delta := range d.Tags {
		s.c.UnreadByTag[tag] += delta
	}
	for id, delta := range d.Sources {
		s.c.UnreadBySource[id] += delta
	}
	snapshot, subs := s.c.clone(), s.subscribers()
	s.mu.Unlock()
	notify(subs, snapshot)
}

// Reset replaces the counters with server statistics. Nil sources or tags
// keep the current per-source or per-tag numbers.
func (s *CounterStore) Reset(stats selfoss.Stats, sources []selfoss.SourceStats, tags []selfoss.TagStats) {
	s.mu.Lock()
	s.c.Unread = stats.Unread
	s.c.Starred = stats.Starred
	if sources != nil {
		s.c.UnreadBySource = make(map[int64]int, len(sources))
		for _, src := range sources {
			s.c.UnreadBySource[src.ID] = src.Unread
		}
	}
	if tags != nil {
		s.c.UnreadByTag = make(map[string]int, len(tags))
		for _, tag := range tags {
			s.c.UnreadByTag[tag.Tag] = tag.Unread
		}
	}
	snapshot, subs := s.c.clone(), s.subscribers()
	s.mu.Unlock()
	notify(subs, snapshot)
}

func (s *CounterStore) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.clone()
}

// Subscribe registers fn for every change. fn runs synchronously on the
// goroutine that changed the counters and must not block or call back into
// the controller.
func (s *CounterStore) Subscribe(fn func(Counters)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *CounterStore) subscribers() []func(Counters) {
	out := make([]func(Counters), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Counters), c Counters) {
	for _, fn := range subs {
		fn(c.clone())
	}
}
