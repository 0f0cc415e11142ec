package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glabrego/selfoss-cli/internal/app"
	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type fakeSyncer struct {
	res      app.SyncResult
	err      error
	deadline time.Time
}

func (f *fakeSyncer) Sync(ctx context.Context) (app.SyncResult, error) {
	if dl, ok := ctx.Deadline(); ok {
		f.deadline = dl
	}
	return f.res, f.err
}

type fakeSession struct {
	err   error
	calls int
}

func (f *fakeSession) Login(context.Context) error {
	f.calls++
	return f.err
}

func TestRunCmd_NilActionHasNoCommand(t *testing.T) {
	if cmd := RunCmd(context.Background(), nil, "noop"); cmd != nil {
		t.Fatal("expected nil command for nil action")
	}
}

func TestRunCmd_ReportsActionResultWithDeadline(t *testing.T) {
	boom := errors.New("boom")
	var deadline time.Time
	action := entrylist.Action(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return boom
	})

	start := time.Now()
	msg := RunCmd(context.Background(), action, "mark")()
	done, ok := msg.(ActionDoneMsg)
	if !ok {
		t.Fatalf("expected ActionDoneMsg, got %T", msg)
	}
	if done.Label != "mark" || !errors.Is(done.Err, boom) {
		t.Fatalf("unexpected message %+v", done)
	}
	if deadline.Before(start.Add(ActionTimeout - time.Second)) {
		t.Fatalf("expected action timeout deadline, got %s", deadline)
	}
}

func TestSyncCmd(t *testing.T) {
	syncer := &fakeSyncer{res: app.SyncResult{Saved: 3}}
	msg := SyncCmd(context.Background(), syncer)()
	done, ok := msg.(SyncDoneMsg)
	if !ok {
		t.Fatalf("expected SyncDoneMsg, got %T", msg)
	}
	if done.Err != nil || done.Result.Saved != 3 {
		t.Fatalf("unexpected sync message %+v", done)
	}
	if syncer.deadline.IsZero() {
		t.Fatal("expected sync to run with a deadline")
	}
	if SyncCmd(context.Background(), nil) != nil {
		t.Fatal("expected nil command without syncer")
	}
}

func TestLoginCmd_CarriesReturnLocation(t *testing.T) {
	session := &fakeSession{}
	returnTo := entrylist.Location{Type: selfoss.TypeStarred, EntryID: 9}
	msg := LoginCmd(context.Background(), session, returnTo)()
	done, ok := msg.(LoginDoneMsg)
	if !ok {
		t.Fatalf("expected LoginDoneMsg, got %T", msg)
	}
	if done.Err != nil || done.ReturnTo != returnTo || session.calls != 1 {
		t.Fatalf("unexpected login message %+v (calls=%d)", done, session.calls)
	}
}

func TestOpenURLCmd_FallsBackToClipboard(t *testing.T) {
	failOpen := func(context.Context, string) error { return errors.New("no browser") }
	var copied string
	copyOK := func(_ context.Context, url string) error {
		copied = url
		return nil
	}

	msg := OpenURLCmd(context.Background(), "https://example.com", failOpen, copyOK)()
	ok, isOK := msg.(OpenURLSuccessMsg)
	if !isOK || copied != "https://example.com" {
		t.Fatalf("expected clipboard fallback, got %T %+v", msg, ok)
	}

	failCopy := func(context.Context, string) error { return errors.New("no clipboard") }
	if _, isErr := OpenURLCmd(context.Background(), "https://example.com", failOpen, failCopy)().(OpenURLErrorMsg); !isErr {
		t.Fatal("expected error message when both fail")
	}
}

func TestCopyURLCmd(t *testing.T) {
	msg := CopyURLCmd(context.Background(), "https://example.com", func(context.Context, string) error { return nil })()
	if got, ok := msg.(OpenURLSuccessMsg); !ok || got.Status != "URL copied to clipboard" {
		t.Fatalf("unexpected message %T %+v", msg, msg)
	}
}
