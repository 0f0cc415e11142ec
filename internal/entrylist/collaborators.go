package entrylist

import (
	"context"
	"errors"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

// ItemsAPI is the part of the selfoss client the controller talks to.
type ItemsAPI interface {
	GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error)
	Mark(ctx context.Context, id int64, unread bool) error
	MarkAll(ctx context.Context, ids []int64) error
	Starr(ctx context.Context, id int64, starred bool) error
}

// OfflineStore is the local cache used when offline mode is enabled.
type OfflineStore interface {
	GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error)
	EntryMark(ctx context.Context, id int64, unread bool) error
	EntriesMark(ctx context.Context, ids []int64, unread bool) error
	EntryStar(ctx context.Context, id int64, starred bool) error
	EnqueueStatus(ctx context.Context, update selfoss.StatusUpdate) error
	EnqueueStatuses(ctx context.Context, updates []selfoss.StatusUpdate) error
}

// SyncWaiter blocks until an in-flight background sync has finished.
type SyncWaiter interface {
	Wait(ctx context.Context) error
}

// Router exposes the current location and the sign-in redirect. Like View it
// is called with the controller lock held.
type Router interface {
	Location() Location
	RedirectToLogin(returnTo Location, reason string)
}

// View receives presentation side effects. Calls happen while the controller
// holds its lock, so implementations must not call back into the controller.
type View interface {
	ScrollIntoView(id int64)
	Focus(id int64)
	ScrollToTop()
	Notify(Notice)
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

type Notice struct {
	Level NoticeLevel
	Text  string
	// Retryable notices come with a manual retry action in the UI.
	Retryable bool
}

// Behavior holds the user-facing toggles read by the controller.
type Behavior struct {
	OfflineEnabled        bool
	AutoMarkAsRead        bool
	AutoCollapse          bool
	AutoHideReadOnMobile  bool
	ScrollToArticleHeader bool
	AutoStreamMore        bool
	PageSize              int
}

// Action is deferred work produced by the navigator and mutation shortcuts.
// Adapters run it off their event loop.
type Action func(ctx context.Context) error

// Batch runs actions in order and joins their errors. Nil actions are skipped
// and a batch with nothing to do is nil.
func Batch(actions ...Action) Action {
	var valid []Action
	for _, a := range actions {
		if a != nil {
			valid = append(valid, a)
		}
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	}
	return func(ctx context.Context) error {
		var errs []error
		for _, a := range valid {
			if err := a(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

type nopView struct{}

func (nopView) ScrollIntoView(int64) {}
func (nopView) Focus(int64)          {}
func (nopView) ScrollToTop()         {}
func (nopView) Notify(Notice)        {}

type staticRouter struct{}

func (staticRouter) Location() Location               { return Location{Type: selfoss.TypeNewest} }
func (staticRouter) RedirectToLogin(Location, string) {}
