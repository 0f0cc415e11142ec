// Package entrylist implements the entry list: fetching pages from the server
// or the offline cache, optimistic read and star changes, and keyboard
// navigation. It is independent of any UI; adapters render Snapshot and run
// the returned Actions.
package entrylist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

const defaultPageSize = 50

var ErrEntryNotLoaded = errors.New("entry not in the current list")

const sessionExpiredReason = "Your session has expired. Please sign in again."

type Options struct {
	Items    ItemsAPI
	Offline  OfflineStore
	Sync     SyncWaiter
	Router   Router
	View     View
	Counters *CounterStore
	Behavior Behavior
	Logger   *slog.Logger
}

type Controller struct {
	items    ItemsAPI
	offline  OfflineStore
	sync     SyncWaiter
	router   Router
	view     View
	counters *CounterStore
	behavior Behavior
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	params FetchParams
	online bool
	narrow bool
	// olderOnline routes further pages to the server once the offline cache
	// is exhausted.
	olderOnline bool

	fetchSeq     uint64
	cancelFetch  context.CancelFunc
	appendActive bool
}

func New(opts Options) *Controller {
	c := &Controller{
		items:    opts.Items,
		offline:  opts.Offline,
		sync:     opts.Sync,
		router:   opts.Router,
		view:     opts.View,
		counters: opts.Counters,
		behavior: opts.Behavior,
		log:      opts.Logger,
		online:   true,
		state:    State{Expanded: map[int64]bool{}},
	}
	if c.router == nil {
		c.router = staticRouter{}
	}
	if c.view == nil {
		c.view = nopView{}
	}
	if c.counters == nil {
		c.counters = NewCounterStore()
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.behavior.PageSize < 1 {
		c.behavior.PageSize = defaultPageSize
	}
	c.params = c.router.Location().Params()
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Controller) Params() FetchParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *Controller) Counters() *CounterStore {
	return c.counters
}

// Online reports the last observed connectivity.
func (c *Controller) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetNarrow tells the controller whether the view is narrow enough to hide
// read entries while navigating the unread list.
func (c *Controller) SetNarrow(narrow bool) {
	c.mu.Lock()
	c.narrow = narrow
	c.mu.Unlock()
}

// SetLocation switches the list to loc and returns the reload to run. Any
// change of type, tag, source or search resets the cursor.
func (c *Controller) SetLocation(loc Location) Action {
	c.mu.Lock()
	next := c.params.WithFilter(loc.Params())
	next.SourcesNav = c.params.SourcesNav
	if !c.params.SameFilter(next) {
		c.olderOnline = false
		c.cancelFetchLocked()
	}
	c.params = next
	c.mu.Unlock()

	opts := ReloadOptions{EntryID: loc.EntryID}
	return func(ctx context.Context) error {
		return c.Reload(ctx, opts)
	}
}

// SetSourcesNav asks later fetches to embed sidebar statistics.
func (c *Controller) SetSourcesNav(enabled bool) {
	c.mu.Lock()
	c.params.SourcesNav = enabled
	c.mu.Unlock()
}

// Close cancels any in-flight fetch and discards its result.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelFetchLocked()
	c.mu.Unlock()
}

func (c *Controller) cancelFetchLocked() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.fetchSeq++
	c.appendActive = false
	if c.state.Loading == Loading {
		c.state.Loading = LoadingInitial
	}
}

func (c *Controller) offlineEnabled() bool {
	return c.behavior.OfflineEnabled && c.offline != nil
}

func (c *Controller) redirectToLogin() {
	c.router.RedirectToLogin(c.router.Location(), sessionExpiredReason)
}
