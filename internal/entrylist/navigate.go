package entrylist

import (
	"context"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type Direction int

const (
	Forward Direction = iota
	Backward
)

// Next selects the entry after the current one, or the first entry when
// nothing is selected. On the last entry the selection stays and the returned
// Action loads more. With open the destination is expanded.
func (c *Controller) Next(open bool) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(Forward, open)
}

// Prev selects the entry before the current one. Without a selection or on
// the first entry it does nothing.
func (c *Controller) Prev(open bool) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(Backward, open)
}

// Throw marks the selected entry read and moves on with open set.
func (c *Controller) Throw(dir Direction) Action {
	c.mu.Lock()
	id := c.state.SelectedID
	c.mu.Unlock()

	var mark Action
	if id != 0 {
		mark = c.MarkAction(id, MarkOff)
	}

	c.mu.Lock()
	move := c.moveLocked(dir, true)
	c.mu.Unlock()
	return Batch(mark, move)
}

// Select moves the selection to id without expanding it.
func (c *Controller) Select(id int64) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.state.Index(id)
	if i < 0 {
		return nil
	}
	action := c.selectLocked(id, false)
	if c.behavior.AutoStreamMore && i == len(c.state.Entries)-1 && c.state.HasMore {
		action = Batch(action, c.LoadMore)
	}
	return action
}

// ToggleExpanded opens or closes an entry and selects it.
func (c *Controller) ToggleExpanded(id int64) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Index(id) < 0 {
		return nil
	}
	if c.state.IsExpanded(id) {
		c.state = c.state.withExpanded(id, false, false)
		return nil
	}
	return c.selectLocked(id, true)
}

func (c *Controller) moveLocked(dir Direction, open bool) Action {
	entries := c.state.Entries
	cur := c.state.Index(c.state.SelectedID)

	var target int
	switch {
	case len(entries) == 0:
		if dir == Forward {
			return c.loadMoreAction()
		}
		return nil
	case cur < 0 && dir == Backward:
		return nil
	case cur < 0:
		target = 0
	case dir == Forward && cur == len(entries)-1:
		return c.loadMoreAction()
	case dir == Backward && cur == 0:
		return nil
	case dir == Forward:
		target = cur + 1
	default:
		target = cur - 1
	}
	return c.selectLocked(entries[target].ID, open)
}

func (c *Controller) loadMoreAction() Action {
	if !c.state.HasMore && !c.state.OfflineExhausted {
		return nil
	}
	return c.LoadMore
}

// selectLocked moves the selection to id, applying auto-hide, expansion and
// auto-mark-as-read. It returns the deferred mark, if any.
func (c *Controller) selectLocked(id int64, open bool) Action {
	prev, hadPrev := c.state.Selected()
	if hadPrev && prev.ID != id && c.shouldAutoHideLocked(prev) {
		c.state = c.state.without(map[int64]struct{}{prev.ID: {}})
	}
	c.state = c.state.withSelected(id)
	if open {
		c.state = c.state.withExpanded(id, true, c.behavior.AutoCollapse)
	}
	c.view.ScrollIntoView(id)
	c.view.Focus(id)

	entry, _ := c.state.Entry(id)
	if !open || !c.behavior.AutoMarkAsRead || !entry.Unread {
		return nil
	}
	m, ok, err := c.stageLocked(id, selfoss.FieldUnread, MarkOff)
	if err != nil || !ok {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := c.confirm(ctx, m)
		return err
	}
}

func (c *Controller) shouldAutoHideLocked(e selfoss.Entry) bool {
	return c.behavior.AutoHideReadOnMobile &&
		c.narrow &&
		c.params.normalizedType() == selfoss.TypeUnread &&
		!e.Unread
}
