package tui

import (
	"testing"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

func TestScreen_DrainResetsEffects(t *testing.T) {
	s := &screen{}
	s.ScrollIntoView(4)
	s.Focus(4)
	s.Notify(entrylist.Notice{Text: "queued"})

	eff := s.drain()
	if eff.reveal != 4 || eff.focus != 4 || eff.toTop || len(eff.notices) != 1 {
		t.Fatalf("unexpected effects %+v", eff)
	}
	if again := s.drain(); again.reveal != 0 || again.focus != 0 || len(again.notices) != 0 {
		t.Fatalf("expected empty buffer after drain, got %+v", again)
	}

	s.ScrollIntoView(7)
	s.ScrollToTop()
	if eff := s.drain(); !eff.toTop || eff.reveal != 0 {
		t.Fatalf("expected scroll to top to win over reveal, got %+v", eff)
	}
}

func TestRouter_KeepsFirstLoginRequest(t *testing.T) {
	r := newRouter(entrylist.Location{Type: selfoss.TypeUnread})
	r.RedirectToLogin(entrylist.Location{Type: selfoss.TypeUnread, EntryID: 9}, "expired")
	r.RedirectToLogin(entrylist.Location{Type: selfoss.TypeStarred}, "again")

	req, ok := r.takeLogin()
	if !ok || req.returnTo.EntryID != 9 || req.reason != "expired" {
		t.Fatalf("unexpected login request %+v ok=%v", req, ok)
	}
	if _, ok := r.takeLogin(); ok {
		t.Fatal("expected request to be consumed")
	}

	r.set(entrylist.Location{Type: selfoss.TypeStarred, Tag: "go"})
	if got := r.Location().Path(); got != "/starred/tag-go" {
		t.Fatalf("unexpected location %q", got)
	}
}
