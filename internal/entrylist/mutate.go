package entrylist

import (
	"context"
	"fmt"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

// MarkMode selects the value written by Mark and Star. Mark works on the
// unread flag, so MarkOff marks an entry read.
type MarkMode int

const (
	MarkToggle MarkMode = iota
	MarkOn
	MarkOff
)

func (m MarkMode) apply(current bool) bool {
	switch m {
	case MarkOn:
		return true
	case MarkOff:
		return false
	}
	return !current
}

// Outcome is the terminal state of an optimistic change.
type Outcome int

const (
	// OutcomeUnchanged means the entry already had the requested value.
	OutcomeUnchanged Outcome = iota
	OutcomeConfirmed
	OutcomeQueued
	OutcomeRolledBack
	OutcomeRedirected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeQueued:
		return "queued"
	case OutcomeRolledBack:
		return "rolled back"
	case OutcomeRedirected:
		return "redirected"
	}
	return "unknown"
}

// mutation is a change applied locally and waiting for the server.
type mutation struct {
	entry selfoss.Entry // as it was before the change
	field selfoss.StatusField
	value bool
	diff  Diff
}

// Mark sets the unread flag of a loaded entry. The list and counters change
// immediately; the returned Outcome tells how the server round trip ended.
func (c *Controller) Mark(ctx context.Context, id int64, mode MarkMode) (Outcome, error) {
	m, ok, err := c.stage(id, selfoss.FieldUnread, mode)
	if err != nil || !ok {
		return OutcomeUnchanged, err
	}
	return c.confirm(ctx, m)
}

func (c *Controller) Star(ctx context.Context, id int64, mode MarkMode) (Outcome, error) {
	m, ok, err := c.stage(id, selfoss.FieldStarred, mode)
	if err != nil || !ok {
		return OutcomeUnchanged, err
	}
	return c.confirm(ctx, m)
}

// MarkAction applies the change now and defers the server round trip to the
// returned Action, which is nil when nothing changed.
func (c *Controller) MarkAction(id int64, mode MarkMode) Action {
	return c.stagedAction(id, selfoss.FieldUnread, mode)
}

func (c *Controller) StarAction(id int64, mode MarkMode) Action {
	return c.stagedAction(id, selfoss.FieldStarred, mode)
}

func (c *Controller) stagedAction(id int64, field selfoss.StatusField, mode MarkMode) Action {
	m, ok, err := c.stage(id, field, mode)
	if err != nil {
		return func(context.Context) error { return err }
	}
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := c.confirm(ctx, m)
		return err
	}
}

// stage reads the current flag and applies the new value together with its
// counter diff.
func (c *Controller) stage(id int64, field selfoss.StatusField, mode MarkMode) (mutation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageLocked(id, field, mode)
}

func (c *Controller) stageLocked(id int64, field selfoss.StatusField, mode MarkMode) (mutation, bool, error) {
	entry, found := c.state.Entry(id)
	if !found {
		return mutation{}, false, fmt.Errorf("entry %d: %w", id, ErrEntryNotLoaded)
	}
	current := flagOf(entry, field)
	value := mode.apply(current)
	if value == current {
		return mutation{}, false, nil
	}
	m := mutation{entry: entry, field: field, value: value, diff: flagDiff(entry, field, value)}
	c.state = c.state.withFlag(id, field, value)
	c.counters.Apply(m.diff)
	return m, true, nil
}

// confirm writes the change to the offline cache, sends it and settles it.
// It is not tied to any fetch and always runs to a terminal state.
func (c *Controller) confirm(ctx context.Context, m mutation) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	id := m.entry.ID

	if c.offlineEnabled() {
		if err := c.writeOffline(ctx, id, m.field, m.value); err != nil {
			c.log.Warn("offline cache update failed", "entry_id", id, "field", m.field, "err", err)
		}
	}

	var err error
	if m.field == selfoss.FieldStarred {
		err = c.items.Starr(ctx, id, m.value)
	} else {
		err = c.items.Mark(ctx, id, m.value)
	}

	switch {
	case err == nil:
		c.setOnline(true)
		return OutcomeConfirmed, nil
	case selfoss.IsAuthError(err):
		c.log.Info("session rejected while updating entry", "entry_id", id, "err", err)
		c.mu.Lock()
		c.redirectToLogin()
		c.mu.Unlock()
		return OutcomeRedirected, err
	case selfoss.IsNetworkError(err) && c.offlineEnabled():
		c.setOnline(false)
		update := selfoss.StatusUpdate{EntryID: id, Field: m.field, Value: m.value, QueuedAt: time.Now().UTC()}
		qerr := c.offline.EnqueueStatus(ctx, update)
		if qerr == nil {
			c.log.Info("queued status change", "entry_id", id, "field", m.field, "value", m.value)
			return OutcomeQueued, nil
		}
		c.log.Error("queue status change failed", "entry_id", id, "err", qerr)
		err = fmt.Errorf("%w (queueing failed: %v)", err, qerr)
	case selfoss.IsNetworkError(err):
		c.setOnline(false)
	}

	c.rollback(ctx, m, err)
	return OutcomeRolledBack, err
}

func (c *Controller) rollback(ctx context.Context, m mutation, cause error) {
	id := m.entry.ID
	previous := flagOf(m.entry, m.field)

	c.mu.Lock()
	current, found := c.state.Entry(id)
	switch {
	case !found:
		// The list was replaced; only the counters still carry the change.
		c.counters.Apply(m.diff.Invert())
	case flagOf(current, m.field) == m.value:
		c.state = c.state.withFlag(id, m.field, previous)
		c.counters.Apply(m.diff.Invert())
	}
	c.view.Notify(Notice{Level: NoticeError, Text: fmt.Sprintf("Could not %s: %v", describe(m.field, m.value), cause)})
	c.mu.Unlock()

	if c.offlineEnabled() {
		if err := c.writeOffline(ctx, id, m.field, previous); err != nil {
			c.log.Warn("offline cache rollback failed", "entry_id", id, "err", err)
		}
	}
	c.log.Error("status change rolled back", "entry_id", id, "field", m.field, "err", cause)
}

// MarkAllVisibleRead marks every unread entry of the list read in one
// request. In the unread list those entries disappear right away.
func (c *Controller) MarkAllVisibleRead(ctx context.Context) (Outcome, error) {
	b, ok := c.stageBulk()
	if !ok {
		return OutcomeUnchanged, nil
	}
	return c.confirmBulk(ctx, b)
}

func (c *Controller) MarkAllVisibleReadAction() Action {
	b, ok := c.stageBulk()
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := c.confirmBulk(ctx, b)
		return err
	}
}

type bulkMutation struct {
	before State
	ids    []int64
	set    map[int64]struct{}
	diff   Diff
}

func (c *Controller) stageBulk() (bulkMutation, bool) {
	c.mu.Lock()
	var unread []selfoss.Entry
	for _, e := range c.state.Entries {
		if e.Unread {
			unread = append(unread, e)
		}
	}
	if len(unread) == 0 {
		c.mu.Unlock()
		return bulkMutation{}, false
	}
	b := bulkMutation{before: c.state, diff: unreadDiff(unread, -1)}
	set := make(map[int64]struct{}, len(unread))
	for _, e := range unread {
		b.ids = append(b.ids, e.ID)
		set[e.ID] = struct{}{}
	}
	b.set = set
	next := c.state.withUnread(set, false)
	if c.params.normalizedType() == selfoss.TypeUnread {
		next = next.without(set)
	}
	c.state = next
	c.counters.Apply(b.diff)
	c.mu.Unlock()
	return b, true
}

func (c *Controller) confirmBulk(ctx context.Context, b bulkMutation) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	if c.offlineEnabled() {
		if err := c.offline.EntriesMark(ctx, b.ids, false); err != nil {
			c.log.Warn("offline cache update failed", "entries", len(b.ids), "err", err)
		}
	}

	err := c.items.MarkAll(ctx, b.ids)
	switch {
	case err == nil:
		c.setOnline(true)
		return OutcomeConfirmed, nil
	case selfoss.IsAuthError(err):
		c.mu.Lock()
		c.redirectToLogin()
		c.mu.Unlock()
		return OutcomeRedirected, err
	case selfoss.IsNetworkError(err) && c.offlineEnabled():
		c.setOnline(false)
		now := time.Now().UTC()
		updates := make([]selfoss.StatusUpdate, 0, len(b.ids))
		for _, id := range b.ids {
			updates = append(updates, selfoss.StatusUpdate{EntryID: id, Field: selfoss.FieldUnread, Value: false, QueuedAt: now})
		}
		qerr := c.offline.EnqueueStatuses(ctx, updates)
		if qerr == nil {
			c.log.Info("queued bulk mark", "entries", len(b.ids))
			return OutcomeQueued, nil
		}
		err = fmt.Errorf("%w (queueing failed: %v)", err, qerr)
	case selfoss.IsNetworkError(err):
		c.setOnline(false)
	}

	c.mu.Lock()
	if c.state.Generation == b.before.Generation {
		c.state = c.state.withReverted(b.before, b.set)
	}
	c.counters.Apply(b.diff.Invert())
	c.view.Notify(Notice{Level: NoticeError, Text: fmt.Sprintf("Could not mark entries read: %v", err)})
	c.mu.Unlock()

	if c.offlineEnabled() {
		if werr := c.offline.EntriesMark(ctx, b.ids, true); werr != nil {
			c.log.Warn("offline cache rollback failed", "entries", len(b.ids), "err", werr)
		}
	}
	c.log.Error("bulk mark rolled back", "entries", len(b.ids), "err", err)
	return OutcomeRolledBack, err
}

func (c *Controller) writeOffline(ctx context.Context, id int64, field selfoss.StatusField, value bool) error {
	if field == selfoss.FieldStarred {
		return c.offline.EntryStar(ctx, id, value)
	}
	return c.offline.EntryMark(ctx, id, value)
}

func (c *Controller) setOnline(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
}

func describe(field selfoss.StatusField, value bool) string {
	switch {
	case field == selfoss.FieldStarred && value:
		return "star entry"
	case field == selfoss.FieldStarred:
		return "unstar entry"
	case value:
		return "mark entry unread"
	}
	return "mark entry read"
}
