package tui

import (
	"sync"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
)

// screen buffers the controller's presentation effects. The controller calls
// it with its own lock held and possibly from a command goroutine, so the
// model only reads the buffer on the event loop through drain.
type screen struct {
	mu      sync.Mutex
	reveal  int64
	focus   int64
	toTop   bool
	notices []entrylist.Notice
}

type screenEffects struct {
	reveal  int64
	focus   int64
	toTop   bool
	notices []entrylist.Notice
}

func (s *screen) ScrollIntoView(id int64) {
	s.mu.Lock()
	s.reveal = id
	s.toTop = false
	s.mu.Unlock()
}

func (s *screen) Focus(id int64) {
	s.mu.Lock()
	s.focus = id
	s.mu.Unlock()
}

func (s *screen) ScrollToTop() {
	s.mu.Lock()
	s.toTop = true
	s.reveal = 0
	s.mu.Unlock()
}

func (s *screen) Notify(n entrylist.Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

func (s *screen) drain() screenEffects {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff := screenEffects{reveal: s.reveal, focus: s.focus, toTop: s.toTop, notices: s.notices}
	s.reveal, s.focus, s.toTop, s.notices = 0, 0, false, nil
	return eff
}

type loginRequest struct {
	returnTo entrylist.Location
	reason   string
}

// router tracks the location shown on screen and remembers a pending sign-in
// redirect until the model picks it up.
type router struct {
	mu    sync.Mutex
	loc   entrylist.Location
	login *loginRequest
}

func newRouter(loc entrylist.Location) *router {
	return &router{loc: loc}
}

func (r *router) Location() entrylist.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loc
}

func (r *router) RedirectToLogin(returnTo entrylist.Location, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.login != nil {
		return
	}
	r.login = &loginRequest{returnTo: returnTo, reason: reason}
}

func (r *router) set(loc entrylist.Location) {
	r.mu.Lock()
	r.loc = loc
	r.mu.Unlock()
}

func (r *router) takeLogin() (loginRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.login == nil {
		return loginRequest{}, false
	}
	req := *r.login
	r.login = nil
	return req, true
}
