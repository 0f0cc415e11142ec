// Package actions turns controller work into bubbletea commands. Every
// command runs off the event loop and reports back with a message.
package actions

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/selfoss-cli/internal/app"
	"github.com/glabrego/selfoss-cli/internal/entrylist"
)

const (
	ActionTimeout = 15 * time.Second
	SyncTimeout   = 2 * time.Minute
)

type Syncer interface {
	Sync(ctx context.Context) (app.SyncResult, error)
}

type Session interface {
	Login(ctx context.Context) error
}

// ActionDoneMsg reports a finished entrylist.Action. The controller already
// holds the outcome in its state; Err is only used for logging and status.
type ActionDoneMsg struct {
	Label    string
	Err      error
	Duration time.Duration
}

type SyncDoneMsg struct {
	Result   app.SyncResult
	Err      error
	Duration time.Duration
}

type LoginDoneMsg struct {
	ReturnTo entrylist.Location
	Err      error
}

type OpenURLSuccessMsg struct {
	Status string
}

type OpenURLErrorMsg struct {
	Err error
}

type ClearStatusMsg struct {
	ID int
}

// RunCmd runs action with a timeout. A nil action yields a nil command.
func RunCmd(ctx context.Context, action entrylist.Action, label string) tea.Cmd {
	if action == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		start := time.Now()
		err := action(ctx)
		return ActionDoneMsg{Label: label, Err: err, Duration: time.Since(start)}
	}
}

func SyncCmd(ctx context.Context, syncer Syncer) tea.Cmd {
	if syncer == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, SyncTimeout)
		defer cancel()
		start := time.Now()
		res, err := syncer.Sync(ctx)
		return SyncDoneMsg{Result: res, Err: err, Duration: time.Since(start)}
	}
}

func LoginCmd(ctx context.Context, session Session, returnTo entrylist.Location) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		var err error
		if session != nil {
			err = session.Login(ctx)
		}
		return LoginDoneMsg{ReturnTo: returnTo, Err: err}
	}
}

// OpenURLCmd opens url in the browser and falls back to the clipboard.
func OpenURLCmd(ctx context.Context, url string, openFn, copyFn func(context.Context, string) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if openFn != nil {
			if err := openFn(ctx, url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened URL in browser"}
			}
		}
		if copyFn != nil {
			if err := copyFn(ctx, url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(ctx context.Context, url string, copyFn func(context.Context, string) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if copyFn != nil {
			if err := copyFn(ctx, url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}

func ClearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return ClearStatusMsg{ID: id}
	})
}
