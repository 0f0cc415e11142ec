package entrylist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

var baseTime = time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)

// makeEntries returns n unread entries, newest first, with ids counting down
// from first. Every entry belongs to source 1 and carries the tag "news".
func makeEntries(first int64, n int) []selfoss.Entry {
	out := make([]selfoss.Entry, 0, n)
	for i := 0; i < n; i++ {
		id := first - int64(i)
		out = append(out, selfoss.Entry{
			ID:       id,
			SourceID: 1,
			Title:    "entry",
			Datetime: baseTime.Add(-time.Duration(i) * time.Minute),
			Unread:   true,
			Tags:     selfoss.Tags{{Name: "news", Color: "#fff"}},
		})
	}
	return out
}

type markCall struct {
	id    int64
	value bool
}

type fakeItems struct {
	mu         sync.Mutex
	pages      []selfoss.EntriesPage
	getErr     error
	getEntries func(ctx context.Context, q selfoss.ItemsQuery, call int) (selfoss.EntriesPage, error)
	queries    []selfoss.ItemsQuery

	markErr    error
	starErr    error
	markAllErr error
	marks      []markCall
	stars      []markCall
	markedAll  [][]int64
}

func (f *fakeItems) GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error) {
	f.mu.Lock()
	call := len(f.queries)
	f.queries = append(f.queries, q)
	hook := f.getEntries
	var page selfoss.EntriesPage
	if call < len(f.pages) {
		page = f.pages[call]
	}
	err := f.getErr
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, q, call)
	}
	return page, err
}

func (f *fakeItems) Mark(_ context.Context, id int64, unread bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, markCall{id, unread})
	return f.markErr
}

func (f *fakeItems) MarkAll(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedAll = append(f.markedAll, append([]int64(nil), ids...))
	return f.markAllErr
}

func (f *fakeItems) Starr(_ context.Context, id int64, starred bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stars = append(f.stars, markCall{id, starred})
	return f.starErr
}

func (f *fakeItems) lastQuery() selfoss.ItemsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return selfoss.ItemsQuery{}
	}
	return f.queries[len(f.queries)-1]
}

type fakeOffline struct {
	mu      sync.Mutex
	pages   []selfoss.EntriesPage
	calls   int
	unread  map[int64]bool
	starred map[int64]bool
	queue   []selfoss.StatusUpdate
	queries []selfoss.ItemsQuery
}

func newFakeOffline(pages ...selfoss.EntriesPage) *fakeOffline {
	return &fakeOffline{pages: pages, unread: map[int64]bool{}, starred: map[int64]bool{}}
}

func (f *fakeOffline) GetEntries(_ context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	var page selfoss.EntriesPage
	if f.calls < len(f.pages) {
		page = f.pages[f.calls]
	}
	f.calls++
	return page, nil
}

func (f *fakeOffline) EntryMark(_ context.Context, id int64, unread bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[id] = unread
	return nil
}

func (f *fakeOffline) EntriesMark(_ context.Context, ids []int64, unread bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.unread[id] = unread
	}
	return nil
}

func (f *fakeOffline) EntryStar(_ context.Context, id int64, starred bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starred[id] = starred
	return nil
}

func (f *fakeOffline) EnqueueStatus(_ context.Context, update selfoss.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, update)
	return nil
}

func (f *fakeOffline) EnqueueStatuses(_ context.Context, updates []selfoss.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, updates...)
	return nil
}

type fakeView struct {
	scrolled []int64
	focused  []int64
	toTop    int
	notices  []Notice
}

func (v *fakeView) ScrollIntoView(id int64) { v.scrolled = append(v.scrolled, id) }
func (v *fakeView) Focus(id int64)          { v.focused = append(v.focused, id) }
func (v *fakeView) ScrollToTop()            { v.toTop++ }
func (v *fakeView) Notify(n Notice)         { v.notices = append(v.notices, n) }

type redirect struct {
	returnTo Location
	reason   string
}

type fakeRouter struct {
	loc       Location
	redirects []redirect
}

func (r *fakeRouter) Location() Location { return r.loc }

func (r *fakeRouter) RedirectToLogin(returnTo Location, reason string) {
	r.redirects = append(r.redirects, redirect{returnTo, reason})
}

type fixture struct {
	c        *Controller
	items    *fakeItems
	offline  *fakeOffline
	view     *fakeView
	router   *fakeRouter
	counters *CounterStore
}

func newFixture(loc Location, behavior Behavior, items *fakeItems, offline *fakeOffline) fixture {
	f := fixture{
		items:    items,
		offline:  offline,
		view:     &fakeView{},
		router:   &fakeRouter{loc: loc},
		counters: NewCounterStore(),
	}
	opts := Options{
		Items:    items,
		Router:   f.router,
		View:     f.view,
		Counters: f.counters,
		Behavior: behavior,
	}
	if offline != nil {
		opts.Offline = offline
	}
	f.c = New(opts)
	return f
}

// loaded returns a fixture whose list already holds entries, with counters
// matching them.
func loaded(t testing.TB, loc Location, behavior Behavior, entries []selfoss.Entry) fixture {
	t.Helper()
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: entries}}}
	f := newFixture(loc, behavior, items, nil)
	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	unread := 0
	for _, e := range entries {
		if e.Unread {
			unread++
		}
	}
	f.counters.Reset(
		selfoss.Stats{Unread: unread + 10, Starred: 3},
		[]selfoss.SourceStats{{ID: 1, Unread: unread + 4}},
		[]selfoss.TagStats{{Tag: "news", Unread: unread + 2}},
	)
	return f
}

func entryIDs(entries []selfoss.Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
