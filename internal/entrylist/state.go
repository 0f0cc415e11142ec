package entrylist

import (
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type LoadingState int

const (
	LoadingInitial LoadingState = iota
	Loading
	LoadingSuccess
	LoadingFailure
)

func (s LoadingState) String() string {
	switch s {
	case LoadingInitial:
		return "initial"
	case Loading:
		return "loading"
	case LoadingSuccess:
		return "success"
	case LoadingFailure:
		return "failure"
	}
	return "unknown"
}

// State is the entry list as rendered. Transitions never modify a State in
// place: they return a new value and leave slices and maps of the old one
// untouched, so a captured State stays a valid snapshot.
type State struct {
	Entries    []selfoss.Entry
	HasMore    bool
	SelectedID int64
	Expanded   map[int64]bool
	Loading    LoadingState
	Err        error
	// Generation changes on every reload that replaces the list.
	Generation uint64
	// OfflineExhausted is set when the offline cache ran out of entries while
	// the server may still have older ones.
	OfflineExhausted bool
}

func (s State) Index(id int64) int {
	if id == 0 {
		return -1
	}
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) Entry(id int64) (selfoss.Entry, bool) {
	i := s.Index(id)
	if i < 0 {
		return selfoss.Entry{}, false
	}
	return s.Entries[i], true
}

func (s State) Selected() (selfoss.Entry, bool) {
	return s.Entry(s.SelectedID)
}

func (s State) IsExpanded(id int64) bool {
	return s.Expanded[id]
}

// Clone returns a deep copy safe to hand to renderers.
func (s State) Clone() State {
	out := s
	if s.Entries != nil {
		out.Entries = make([]selfoss.Entry, len(s.Entries))
		copy(out.Entries, s.Entries)
		for i := range out.Entries {
			if s.Entries[i].Tags != nil {
				out.Entries[i].Tags = append(selfoss.Tags(nil), s.Entries[i].Tags...)
			}
		}
	}
	out.Expanded = copyExpanded(s.Expanded)
	return out
}

func (s State) cleared() State {
	return State{
		Expanded:   map[int64]bool{},
		Loading:    s.Loading,
		Generation: s.Generation + 1,
	}
}

func (s State) loading() State {
	s.Loading = Loading
	s.Err = nil
	return s
}

func (s State) failed(err error) State {
	s.Loading = LoadingFailure
	s.Err = err
	return s
}

func (s State) withPage(page selfoss.EntriesPage, appendPage bool) State {
	if appendPage {
		entries := make([]selfoss.Entry, 0, len(s.Entries)+len(page.Entries))
		entries = append(entries, s.Entries...)
		seen := make(map[int64]struct{}, len(s.Entries))
		for _, e := range s.Entries {
			seen[e.ID] = struct{}{}
		}
		for _, e := range page.Entries {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			entries = append(entries, e)
		}
		s.Entries = entries
	} else {
		s.Entries = append([]selfoss.Entry(nil), page.Entries...)
	}
	s.HasMore = page.HasMore
	s.Loading = LoadingSuccess
	s.Err = nil
	return s.dropDangling()
}

// withFlag returns s with one flag of entry id set to value.
func (s State) withFlag(id int64, field selfoss.StatusField, value bool) State {
	i := s.Index(id)
	if i < 0 {
		return s
	}
	entries := make([]selfoss.Entry, len(s.Entries))
	copy(entries, s.Entries)
	setFlag(&entries[i], field, value)
	s.Entries = entries
	return s
}

func (s State) withUnread(ids map[int64]struct{}, unread bool) State {
	entries := make([]selfoss.Entry, len(s.Entries))
	copy(entries, s.Entries)
	for i := range entries {
		if _, ok := ids[entries[i].ID]; ok {
			entries[i].Unread = unread
		}
	}
	s.Entries = entries
	return s
}

// without drops the given entries and any selection or expansion pointing at them.
func (s State) without(ids map[int64]struct{}) State {
	entries := make([]selfoss.Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if _, ok := ids[e.ID]; ok {
			continue
		}
		entries = append(entries, e)
	}
	s.Entries = entries
	return s.dropDangling()
}

// withReverted undoes a bulk read mark of ids on s. Entries that the mark
// removed from the list are taken from before and put back after the entry
// that preceded them there; everything else keeps its current value.
func (s State) withReverted(before State, ids map[int64]struct{}) State {
	s = s.withUnread(ids, true)

	present := make(map[int64]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		present[e.ID] = struct{}{}
	}
	// Restored entries keyed by the id they follow; 0 is the head of the list.
	after := map[int64][]selfoss.Entry{}
	var prev int64
	restored := 0
	for _, e := range before.Entries {
		if _, ok := present[e.ID]; ok {
			prev = e.ID
			continue
		}
		if _, ok := ids[e.ID]; !ok {
			continue
		}
		e.Unread = true
		after[prev] = append(after[prev], e)
		restored++
	}
	if restored == 0 {
		return s
	}

	entries := make([]selfoss.Entry, 0, len(s.Entries)+restored)
	entries = append(entries, after[0]...)
	for _, e := range s.Entries {
		entries = append(entries, e)
		entries = append(entries, after[e.ID]...)
	}
	s.Entries = entries

	expanded := copyExpanded(s.Expanded)
	for _, group := range after {
		for _, e := range group {
			if before.Expanded[e.ID] {
				expanded[e.ID] = true
			}
		}
	}
	s.Expanded = expanded
	if s.SelectedID == 0 && before.SelectedID != 0 && s.Index(before.SelectedID) >= 0 {
		s.SelectedID = before.SelectedID
	}
	return s
}

func (s State) withSelected(id int64) State {
	s.SelectedID = id
	return s
}

func (s State) withExpanded(id int64, expanded bool, collapseOthers bool) State {
	next := map[int64]bool{}
	if !collapseOthers {
		next = copyExpanded(s.Expanded)
	}
	if expanded {
		next[id] = true
	} else {
		delete(next, id)
	}
	s.Expanded = next
	return s
}

func (s State) dropDangling() State {
	if s.SelectedID != 0 && s.Index(s.SelectedID) < 0 {
		s.SelectedID = 0
	}
	if len(s.Expanded) == 0 {
		return s
	}
	present := make(map[int64]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		present[e.ID] = struct{}{}
	}
	expanded := make(map[int64]bool, len(s.Expanded))
	for id, ok := range s.Expanded {
		if _, found := present[id]; found && ok {
			expanded[id] = true
		}
	}
	s.Expanded = expanded
	return s
}

func copyExpanded(in map[int64]bool) map[int64]bool {
	out := make(map[int64]bool, len(in))
	for id, ok := range in {
		if ok {
			out[id] = true
		}
	}
	return out
}

func flagOf(e selfoss.Entry, field selfoss.StatusField) bool {
	if field == selfoss.FieldStarred {
		return e.Starred
	}
	return e.Unread
}

func setFlag(e *selfoss.Entry, field selfoss.StatusField, value bool) {
	if field == selfoss.FieldStarred {
		e.Starred = value
		return
	}
	e.Unread = value
}
