package entrylist

import (
	"context"
	"errors"
	"fmt"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type ReloadOptions struct {
	// Append adds the page after the current entries instead of replacing them.
	Append bool
	// WaitForSync lets a running background sync finish first so the offline
	// cache is current.
	WaitForSync bool
	// EntryID is a deep-linked entry to include, select and expand.
	EntryID int64
}

type entrySource interface {
	GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error)
}

// Reload fetches a page for the current params. A newer Reload, a filter
// change or Close supersedes it: its result is then dropped and Reload
// returns nil.
func (c *Controller) Reload(ctx context.Context, opts ReloadOptions) error {
	c.mu.Lock()
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.fetchSeq++
	seq := c.fetchSeq
	c.cancelFetch = cancel
	c.appendActive = opts.Append

	if !opts.Append {
		c.params.Cursor.Reset()
		c.olderOnline = false
		c.state = c.state.cleared()
	}
	c.state = c.state.loading()
	params := c.params
	useOffline := c.useOfflineLocked()
	c.mu.Unlock()

	if opts.WaitForSync && c.sync != nil {
		if err := c.sync.Wait(fetchCtx); err != nil {
			if selfoss.IsCanceled(err) {
				return c.discard(seq)
			}
			c.log.Warn("background sync failed before reload", "err", err)
		}
	}

	var (
		source entrySource = c.items
		origin             = "server"
	)
	if useOffline {
		source, origin = c.offline, "offline"
	}
	q := params.Query(c.behavior.PageSize)
	if opts.EntryID != 0 && !opts.Append && !useOffline {
		q.ExtraIDs = []int64{opts.EntryID}
	}
	page, err := source.GetEntries(fetchCtx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.fetchSeq {
		c.log.Debug("dropping superseded fetch", "origin", origin)
		return nil
	}
	c.cancelFetch = nil
	c.appendActive = false
	if errors.Is(fetchCtx.Err(), context.Canceled) {
		c.state.Loading = LoadingInitial
		c.log.Debug("fetch cancelled", "origin", origin)
		return nil
	}

	if err != nil {
		return c.fetchFailedLocked(origin, err)
	}

	if !useOffline {
		c.online = true
		if page.Stats != nil {
			c.counters.Reset(*page.Stats, page.Sources, page.Tags)
		}
	}
	c.state = c.state.withPage(page, opts.Append)
	c.state.OfflineExhausted = useOffline && !page.HasMore && c.online
	c.log.Debug("loaded entries", "origin", origin, "count", len(page.Entries), "append", opts.Append, "has_more", page.HasMore)

	if opts.Append {
		return nil
	}
	if opts.EntryID != 0 && c.state.Index(opts.EntryID) >= 0 {
		c.state = c.state.withSelected(opts.EntryID).withExpanded(opts.EntryID, true, false)
		if c.behavior.ScrollToArticleHeader {
			c.view.ScrollIntoView(opts.EntryID)
		}
		c.view.Focus(opts.EntryID)
		return nil
	}
	if opts.EntryID != 0 && useOffline {
		c.log.Info("linked entry not in offline cache", "entry_id", opts.EntryID)
		c.view.Notify(Notice{
			Level: NoticeInfo,
			Text:  fmt.Sprintf("Entry %d is not in the offline cache; sync or load older entries to find it", opts.EntryID),
		})
	}
	c.view.ScrollToTop()
	return nil
}

func (c *Controller) fetchFailedLocked(origin string, err error) error {
	if selfoss.IsCanceled(err) {
		return nil
	}
	c.state = c.state.failed(err)
	if selfoss.IsAuthError(err) {
		c.log.Info("session rejected while loading entries", "err", err)
		c.redirectToLogin()
		return err
	}
	if selfoss.IsNetworkError(err) {
		c.online = false
	}
	c.log.Error("load entries failed", "origin", origin, "err", err)
	c.view.Notify(Notice{
		Level:     NoticeError,
		Text:      fmt.Sprintf("Could not load entries: %v", err),
		Retryable: true,
	})
	return err
}

func (c *Controller) discard(seq uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == c.fetchSeq {
		c.cancelFetch = nil
		c.appendActive = false
		c.state.Loading = LoadingInitial
	}
	c.log.Debug("fetch cancelled while waiting for sync")
	return nil
}

// LoadMore appends the next page. When the offline cache has run out it
// continues from the server.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.appendActive {
		c.mu.Unlock()
		return nil
	}
	if !c.state.HasMore {
		if !c.state.OfflineExhausted {
			c.mu.Unlock()
			return nil
		}
		c.olderOnline = true
		c.state.OfflineExhausted = false
	}
	c.params.Cursor.Advance(c.state.Entries)
	c.mu.Unlock()
	return c.Reload(ctx, ReloadOptions{Append: true})
}

// LoadOlderOnline fetches the entries older than the offline cache from the
// server.
func (c *Controller) LoadOlderOnline(ctx context.Context) error {
	c.mu.Lock()
	c.olderOnline = true
	c.state.OfflineExhausted = false
	c.state.HasMore = true
	c.mu.Unlock()
	return c.LoadMore(ctx)
}

func (c *Controller) useOfflineLocked() bool {
	if !c.offlineEnabled() || c.olderOnline {
		return false
	}
	return !c.params.HasServerOnlyFilter()
}
