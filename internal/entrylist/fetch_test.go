package entrylist

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

func TestController_Reload_ReplacesListAndScrollsToTop(t *testing.T) {
	items := &fakeItems{pages: []selfoss.EntriesPage{
		{Entries: makeEntries(10, 3), HasMore: true},
		{Entries: makeEntries(50, 2)},
	}}
	f := newFixture(Location{Type: selfoss.TypeUnread}, Behavior{PageSize: 3}, items, nil)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	first := f.c.Snapshot()
	if first.Loading != LoadingSuccess || !first.HasMore || len(first.Entries) != 3 {
		t.Fatalf("unexpected state after first reload: %+v", first)
	}
	if q := items.lastQuery(); q.Type != selfoss.TypeUnread || q.Limit != 3 {
		t.Fatalf("unexpected query: %+v", q)
	}

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	second := f.c.Snapshot()
	if got := entryIDs(second.Entries); !reflect.DeepEqual(got, []int64{50, 49}) {
		t.Fatalf("expected replaced list, got %v", got)
	}
	if second.Generation <= first.Generation {
		t.Fatalf("expected generation to advance: %d -> %d", first.Generation, second.Generation)
	}
	if f.view.toTop != 2 {
		t.Fatalf("expected scroll to top on each reload, got %d", f.view.toTop)
	}
}

func TestController_Reload_LastRequestWins(t *testing.T) {
	pageA := selfoss.EntriesPage{Entries: makeEntries(100, 2)}
	pageB := selfoss.EntriesPage{Entries: makeEntries(200, 3)}
	startedA := make(chan struct{})
	releaseA := make(chan struct{})
	items := &fakeItems{getEntries: func(_ context.Context, _ selfoss.ItemsQuery, call int) (selfoss.EntriesPage, error) {
		if call == 0 {
			close(startedA)
			<-releaseA
			// Resolve late even though the request was superseded.
			return pageA, nil
		}
		return pageB, nil
	}}
	f := newFixture(Location{}, Behavior{}, items, nil)

	errA := make(chan error, 1)
	go func() { errA <- f.c.Reload(context.Background(), ReloadOptions{}) }()
	<-startedA

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload B returned error: %v", err)
	}
	close(releaseA)
	if err := <-errA; err != nil {
		t.Fatalf("superseded reload should not fail, got %v", err)
	}

	got := entryIDs(f.c.Snapshot().Entries)
	if !reflect.DeepEqual(got, entryIDs(pageB.Entries)) {
		t.Fatalf("expected B's entries %v, got %v", entryIDs(pageB.Entries), got)
	}
}

func TestController_Reload_SupersededRequestIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	items := &fakeItems{getEntries: func(ctx context.Context, _ selfoss.ItemsQuery, call int) (selfoss.EntriesPage, error) {
		if call == 0 {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return selfoss.EntriesPage{}, ctx.Err()
		}
		return selfoss.EntriesPage{Entries: makeEntries(5, 1)}, nil
	}}
	f := newFixture(Location{}, Behavior{}, items, nil)

	errA := make(chan error, 1)
	go func() { errA <- f.c.Reload(context.Background(), ReloadOptions{}) }()
	<-started

	next := f.c.SetLocation(Location{Type: selfoss.TypeStarred})
	<-cancelled
	if err := <-errA; err != nil {
		t.Fatalf("cancelled reload should not fail, got %v", err)
	}
	if err := next(context.Background()); err != nil {
		t.Fatalf("reload after filter change returned error: %v", err)
	}
	if len(f.view.notices) != 0 {
		t.Fatalf("cancellation must not be user visible, got %+v", f.view.notices)
	}
	if got := f.c.Snapshot(); got.Loading != LoadingSuccess || len(got.Entries) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestController_Close_DropsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	items := &fakeItems{getEntries: func(context.Context, selfoss.ItemsQuery, int) (selfoss.EntriesPage, error) {
		close(started)
		<-release
		return selfoss.EntriesPage{Entries: makeEntries(5, 2)}, nil
	}}
	f := newFixture(Location{}, Behavior{}, items, nil)

	done := make(chan error, 1)
	go func() { done <- f.c.Reload(context.Background(), ReloadOptions{}) }()
	<-started
	f.c.Close()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if got := f.c.Snapshot(); len(got.Entries) != 0 {
		t.Fatalf("expected result to be dropped after Close, got %v", entryIDs(got.Entries))
	}
}

func TestController_Reload_FailureSetsStateAndNotifies(t *testing.T) {
	netErr := &selfoss.NetworkError{Op: "list entries", Err: errors.New("connection refused")}
	f := newFixture(Location{}, Behavior{}, &fakeItems{getErr: netErr}, nil)

	err := f.c.Reload(context.Background(), ReloadOptions{})
	if !errors.Is(err, netErr) {
		t.Fatalf("expected network error, got %v", err)
	}
	state := f.c.Snapshot()
	if state.Loading != LoadingFailure || state.Err == nil {
		t.Fatalf("expected failure state, got %+v", state)
	}
	if f.c.Online() {
		t.Fatal("expected controller to be offline after network failure")
	}
	if len(f.view.notices) != 1 || !f.view.notices[0].Retryable || f.view.notices[0].Level != NoticeError {
		t.Fatalf("expected one retryable error notice, got %+v", f.view.notices)
	}
}

func TestController_Reload_AuthFailureRedirects(t *testing.T) {
	loc := Location{Type: selfoss.TypeUnread, Tag: "go"}
	authErr := &selfoss.HTTPError{Op: "list entries", StatusCode: http.StatusForbidden}
	f := newFixture(loc, Behavior{}, &fakeItems{getErr: authErr}, nil)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); !selfoss.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(f.router.redirects) != 1 || f.router.redirects[0].returnTo != loc || f.router.redirects[0].reason == "" {
		t.Fatalf("expected redirect preserving location, got %+v", f.router.redirects)
	}
	if len(f.view.notices) != 0 {
		t.Fatalf("auth failures go through the router, got notices %+v", f.view.notices)
	}
}

func TestController_LoadMore_UsesLastEntryAsExclusiveCursor(t *testing.T) {
	page1 := makeEntries(44, 3) // 44, 43, 42
	page2 := makeEntries(41, 2)
	items := &fakeItems{pages: []selfoss.EntriesPage{
		{Entries: page1, HasMore: true},
		// A server echoing the boundary entry must not duplicate it.
		{Entries: append([]selfoss.Entry{page1[2]}, page2...)},
	}}
	f := newFixture(Location{}, Behavior{PageSize: 3}, items, nil)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if err := f.c.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore returned error: %v", err)
	}

	q := items.lastQuery()
	if q.FromID != 42 || !q.FromDatetime.Equal(page1[2].Datetime) {
		t.Fatalf("expected cursor (%s, 42), got (%s, %d)", page1[2].Datetime, q.FromDatetime, q.FromID)
	}
	got := entryIDs(f.c.Snapshot().Entries)
	if !reflect.DeepEqual(got, []int64{44, 43, 42, 41, 40}) {
		t.Fatalf("unexpected entries after load more: %v", got)
	}
	if f.c.Snapshot().HasMore {
		t.Fatal("expected hasMore from the last page")
	}

	if err := f.c.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore returned error: %v", err)
	}
	if len(items.queries) != 2 {
		t.Fatalf("LoadMore without more entries must not fetch, got %d queries", len(items.queries))
	}
}

func TestController_SetLocation_ResetsCursorOnFilterChange(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
	}{
		{name: "type", loc: Location{Type: selfoss.TypeUnread}},
		{name: "tag", loc: Location{Type: selfoss.TypeNewest, Tag: "go"}},
		{name: "source", loc: Location{Type: selfoss.TypeNewest, Source: 7}},
		{name: "search", loc: Location{Type: selfoss.TypeNewest, Search: "kernel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Location{Type: selfoss.TypeNewest}, Behavior{}, &fakeItems{}, nil)
			f.c.mu.Lock()
			f.c.params.Cursor = Cursor{Datetime: baseTime, ID: 42}
			f.c.mu.Unlock()

			f.c.SetLocation(tt.loc)
			if got := f.c.Params().Cursor; !got.IsZero() {
				t.Fatalf("expected cursor reset, got %+v", got)
			}
		})
	}

	t.Run("unchanged filter keeps cursor", func(t *testing.T) {
		f := newFixture(Location{Type: selfoss.TypeUnread, Tag: "go"}, Behavior{}, &fakeItems{}, nil)
		f.c.mu.Lock()
		f.c.params.Cursor = Cursor{Datetime: baseTime, ID: 42}
		f.c.mu.Unlock()

		f.c.SetLocation(Location{Type: selfoss.TypeUnread, Tag: "go", EntryID: 9})
		if got := f.c.Params().Cursor; got.ID != 42 {
			t.Fatalf("expected cursor kept, got %+v", got)
		}
	})
}

func TestController_Reload_DeepLinkSelectsAndExpands(t *testing.T) {
	entries := makeEntries(10, 3)
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: entries}}}
	f := newFixture(Location{}, Behavior{ScrollToArticleHeader: true}, items, nil)

	if err := f.c.SetLocation(Location{Type: selfoss.TypeNewest, EntryID: 9})(context.Background()); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if q := items.lastQuery(); !reflect.DeepEqual(q.ExtraIDs, []int64{9}) {
		t.Fatalf("expected deep-linked id in query, got %+v", q.ExtraIDs)
	}
	state := f.c.Snapshot()
	if state.SelectedID != 9 || !state.IsExpanded(9) {
		t.Fatalf("expected entry 9 selected and expanded, got %+v", state)
	}
	if !reflect.DeepEqual(f.view.scrolled, []int64{9}) || f.view.toTop != 0 {
		t.Fatalf("expected scroll to entry, got scrolled=%v toTop=%d", f.view.scrolled, f.view.toTop)
	}
}

func TestController_Reload_PrefersOfflineCacheAndContinuesOnline(t *testing.T) {
	offline := newFakeOffline(selfoss.EntriesPage{Entries: makeEntries(10, 2)})
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: makeEntries(8, 2), HasMore: true}}}
	f := newFixture(Location{Type: selfoss.TypeUnread}, Behavior{OfflineEnabled: true}, items, offline)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if len(items.queries) != 0 || offline.calls != 1 {
		t.Fatalf("expected offline fetch only, got server=%d offline=%d", len(items.queries), offline.calls)
	}
	if !f.c.Snapshot().OfflineExhausted {
		t.Fatal("expected offline horizon to be reported")
	}

	if err := f.c.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore returned error: %v", err)
	}
	q := items.lastQuery()
	if len(items.queries) != 1 || q.FromID != 9 {
		t.Fatalf("expected server fetch after entry 9, got %+v", items.queries)
	}
	state := f.c.Snapshot()
	if got := entryIDs(state.Entries); !reflect.DeepEqual(got, []int64{10, 9, 8, 7}) {
		t.Fatalf("unexpected entries: %v", got)
	}
	if state.OfflineExhausted || !state.HasMore {
		t.Fatalf("expected server paging state, got %+v", state)
	}
}

func TestController_LoadOlderOnline_SkipsRemainingCache(t *testing.T) {
	offline := newFakeOffline(selfoss.EntriesPage{Entries: makeEntries(10, 2), HasMore: true})
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: makeEntries(8, 1)}}}
	f := newFixture(Location{Type: selfoss.TypeUnread}, Behavior{OfflineEnabled: true}, items, offline)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if err := f.c.LoadOlderOnline(context.Background()); err != nil {
		t.Fatalf("LoadOlderOnline returned error: %v", err)
	}
	if offline.calls != 1 || len(items.queries) != 1 || items.lastQuery().FromID != 9 {
		t.Fatalf("expected one server fetch after entry 9, got offline=%d queries=%+v", offline.calls, items.queries)
	}
	if got := entryIDs(f.c.Snapshot().Entries); !reflect.DeepEqual(got, []int64{10, 9, 8}) {
		t.Fatalf("unexpected entries: %v", got)
	}
}

func TestController_Reload_DeepLinkMissingFromOfflineCacheNotifies(t *testing.T) {
	offline := newFakeOffline(selfoss.EntriesPage{Entries: makeEntries(10, 2)})
	items := &fakeItems{}
	f := newFixture(Location{Type: selfoss.TypeUnread}, Behavior{OfflineEnabled: true}, items, offline)

	if err := f.c.Reload(context.Background(), ReloadOptions{EntryID: 99}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if len(items.queries) != 0 {
		t.Fatalf("expected offline fetch only, got %+v", items.queries)
	}
	if len(f.view.notices) != 1 || f.view.notices[0].Level != NoticeInfo {
		t.Fatalf("expected one info notice about the missing entry, got %+v", f.view.notices)
	}
	if state := f.c.Snapshot(); state.SelectedID != 0 || f.view.toTop != 1 {
		t.Fatalf("expected list shown from the top, got selected=%d toTop=%d", state.SelectedID, f.view.toTop)
	}
}

func TestController_Reload_ServerOnlyFilterSkipsOfflineCache(t *testing.T) {
	offline := newFakeOffline()
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: makeEntries(3, 1)}}}
	f := newFixture(Location{Type: selfoss.TypeNewest, Search: "go"}, Behavior{OfflineEnabled: true}, items, offline)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if offline.calls != 0 || len(items.queries) != 1 || items.queries[0].Search != "go" {
		t.Fatalf("expected server fetch with search, got offline=%d queries=%+v", offline.calls, items.queries)
	}
}

type fakeSync struct {
	waited bool
	err    error
}

func (s *fakeSync) Wait(context.Context) error {
	s.waited = true
	return s.err
}

func TestController_Reload_WaitsForSync(t *testing.T) {
	sync := &fakeSync{err: errors.New("replay failed")}
	items := &fakeItems{pages: []selfoss.EntriesPage{{Entries: makeEntries(3, 1)}}}
	c := New(Options{Items: items, Sync: sync})

	if err := c.Reload(context.Background(), ReloadOptions{WaitForSync: true}); err != nil {
		t.Fatalf("a failed sync must not fail the reload, got %v", err)
	}
	if !sync.waited {
		t.Fatal("expected reload to wait for sync")
	}
	if len(c.Snapshot().Entries) != 1 {
		t.Fatal("expected entries after sync wait")
	}
}

func TestController_Reload_EmbeddedStatsResetCounters(t *testing.T) {
	items := &fakeItems{pages: []selfoss.EntriesPage{{
		Entries: makeEntries(3, 1),
		Stats:   &selfoss.Stats{Total: 9, Unread: 4, Starred: 2},
		Sources: []selfoss.SourceStats{{ID: 1, Unread: 4}},
		Tags:    []selfoss.TagStats{{Tag: "news", Unread: 3}},
	}}}
	f := newFixture(Location{}, Behavior{}, items, nil)
	f.c.SetSourcesNav(true)

	if err := f.c.Reload(context.Background(), ReloadOptions{}); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if !items.lastQuery().SourcesNav {
		t.Fatal("expected sourcesNav in query")
	}
	got := f.counters.Snapshot()
	if got.Unread != 4 || got.Starred != 2 || got.UnreadBySource[1] != 4 || got.UnreadByTag["news"] != 3 {
		t.Fatalf("unexpected counters: %+v", got)
	}
}
