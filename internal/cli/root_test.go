package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	"github.com/glabrego/selfoss-cli/internal/storage"
)

const itemsJSON = `{"hasMore":false,"entries":[
{"id":2,"source":7,"sourcetitle":"Go Blog","title":"Generics","content":"<p>Hello <strong>world</strong></p><img src=\"https://example.com/a.png\" alt=\"chart\">","link":"https://example.com/2","datetime":"2026-03-10T12:00:00+00:00","unread":true,"starred":false,"tags":{"go":"#00add8"}},
{"id":1,"source":7,"sourcetitle":"Go Blog","title":"Modules","content":"<p>Older</p>","link":"https://example.com/1","datetime":"2026-03-09T12:00:00+00:00","unread":false,"starred":true,"tags":[]}
]}`

type fakeServer struct {
	mu      sync.Mutex
	queries []string
	marked  []string
	starred []string
}

func (f *fakeServer) record(dst *[]string, v string) {
	f.mu.Lock()
	*dst = append(*dst, v)
	f.mu.Unlock()
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{}
	r := chi.NewRouter()
	r.Get("/items", func(w http.ResponseWriter, r *http.Request) {
		f.record(&f.queries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(itemsJSON))
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":1234,"unread":1,"starred":1}`))
	})
	r.Get("/sources/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":7,"title":"Go Blog","unread":1}]`))
	})
	r.Get("/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"tag":"go","color":"#00add8","unread":1}]`))
	})
	r.Post("/mark", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		f.record(&f.marked, strings.Join(r.PostForm["ids[]"], ","))
	})
	r.Post("/starr/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(&f.starred, chi.URLParam(r, "id"))
	})
	r.Post("/unstarr/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(&f.starred, "-"+chi.URLParam(r, "id"))
	})
	r.Get("/update", func(w http.ResponseWriter, r *http.Request) {})
	r.Post("/source/{id}/update", func(w http.ResponseWriter, r *http.Request) {})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return f, ts
}

func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("SELFOSS_BASE_URL", baseURL)
	t.Setenv("SELFOSS_USERNAME", "")
	t.Setenv("SELFOSS_PASSWORD", "")
	dbPath := filepath.Join(dir, "selfoss.db")
	t.Setenv("SELFOSS_DB_PATH", dbPath)
	return dbPath
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestList_SyncThenReadFromCacheAsJSON(t *testing.T) {
	srv, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "list", "--sync", "-o", "json")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	var resp listResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if resp.Location != "/newest/all" || len(resp.Entries) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Entries[0].ID != 2 || resp.Entries[0].Tags.Names()[0] != "go" {
		t.Fatalf("unexpected first entry %+v", resp.Entries[0])
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	// The sync pulls newest, unread and starred pages; the list itself reads
	// the cache.
	if len(srv.queries) != 3 {
		t.Fatalf("expected 3 item requests from the sync, got %v", srv.queries)
	}
}

func TestList_OnlineUsesServerQuery(t *testing.T) {
	srv, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "list", "/unread/tag-go", "--online", "--search", "generics")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Generics") || !strings.Contains(out, "U-") {
		t.Fatalf("unexpected table output:\n%s", out)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.queries) != 1 {
		t.Fatalf("expected one item request, got %v", srv.queries)
	}
	q := srv.queries[0]
	for _, want := range []string{"type=unread", "tag=go", "search=generics"} {
		if !strings.Contains(q, want) {
			t.Fatalf("expected %q in query %q", want, q)
		}
	}
}

func TestMark_SendsBulkRead(t *testing.T) {
	srv, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "mark", "1", "2")
	if err != nil {
		t.Fatalf("mark returned error: %v", err)
	}
	if strings.TrimSpace(out) != "Marked read: 2 entries" {
		t.Fatalf("unexpected output %q", out)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.marked) != 1 || srv.marked[0] != "1,2" {
		t.Fatalf("expected one bulk mark of 1,2, got %v", srv.marked)
	}
}

func TestStar_JSONOutput(t *testing.T) {
	srv, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "-o", "json", "star", "--off", "5")
	if err != nil {
		t.Fatalf("star returned error: %v", err)
	}
	var resp statusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if resp.Field != selfoss.FieldStarred || resp.Value || resp.Queued || len(resp.IDs) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.starred) != 1 || srv.starred[0] != "-5" {
		t.Fatalf("expected unstar of 5, got %v", srv.starred)
	}
}

func TestStats_Table(t *testing.T) {
	_, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "stats")
	if err != nil {
		t.Fatalf("stats returned error: %v", err)
	}
	if !strings.Contains(out, "1,234") || strings.Contains(out, "cache") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}
}

func TestSyncAndShow(t *testing.T) {
	_, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "sync", "-o", "json")
	if err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	var res syncResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode sync output: %v", err)
	}
	if res.Saved != 2 {
		t.Fatalf("expected 2 saved entries, got %+v", res)
	}

	out, _, err = runRoot(t, "show", "2")
	if err != nil {
		t.Fatalf("show returned error: %v", err)
	}
	for _, want := range []string{"# Generics", "Source: Go Blog", "Tags: go", "Hello **world**"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in show output:\n%s", want, out)
		}
	}

	out, _, err = runRoot(t, "show", "2", "-o", "json")
	if err != nil {
		t.Fatalf("show json returned error: %v", err)
	}
	var shown showResponse
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	if len(shown.Images) != 1 || shown.Images[0] != "https://example.com/a.png" {
		t.Fatalf("unexpected images %v", shown.Images)
	}
}

func TestShow_MissingEntryIsNotFound(t *testing.T) {
	_, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	_, _, err := runRoot(t, "show", "999")
	if err == nil {
		t.Fatal("expected error for missing entry")
	}
	if code := ErrorExitCode(err); code != exitNotFound {
		t.Fatalf("expected exit code %d, got %d (%v)", exitNotFound, code, err)
	}
}

func TestRefresh_SourceThenSync(t *testing.T) {
	_, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	out, _, err := runRoot(t, "refresh", "7")
	if err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if !strings.Contains(out, "SAVED") {
		t.Fatalf("unexpected refresh output:\n%s", out)
	}

	_, _, err = runRoot(t, "refresh", "abc")
	if ErrorExitCode(err) != exitInvalidInput {
		t.Fatalf("expected invalid input for bad source id, got %v", err)
	}
}

func TestRoot_InvalidInputs(t *testing.T) {
	_, ts := newFakeServer(t)
	setupEnv(t, ts.URL)

	cases := [][]string{
		{"list", "--pages", "0"},
		{"list", "--tag", "go", "--source", "3"},
		{"list", "/bogus/all"},
		{"-o", "yaml", "stats"},
		{"mark", "abc"},
	}
	for _, args := range cases {
		_, _, err := runRoot(t, args...)
		if code := ErrorExitCode(err); code != exitInvalidInput {
			t.Fatalf("%v: expected invalid input, got code %d (%v)", args, code, err)
		}
	}
}

func TestRoot_MissingBaseURL(t *testing.T) {
	setupEnv(t, "")

	_, _, err := runRoot(t, "stats")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input without a base URL, got %v", err)
	}
}

func TestErrorExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"nil", nil, 0, ""},
		{"invalid", fmt.Errorf("%w: bad flag", ErrInvalidInput), exitInvalidInput, "invalid-input"},
		{"not found", fmt.Errorf("entry 3: %w", storage.ErrNotFound), exitNotFound, "not-found"},
		{"not loaded", entrylist.ErrEntryNotLoaded, exitNotFound, "not-found"},
		{"auth", &selfoss.HTTPError{Op: "list entries", StatusCode: http.StatusForbidden}, exitAuth, "auth"},
		{"network", &selfoss.NetworkError{Op: "get stats", Err: errors.New("refused")}, exitNetwork, "network"},
		{"other", errors.New("boom"), exitInternal, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorExitCode(tc.err); got != tc.code {
				t.Fatalf("ErrorExitCode = %d, want %d", got, tc.code)
			}
			msg := FormatError(tc.err)
			if tc.err == nil {
				if msg != "" {
					t.Fatalf("expected empty message, got %q", msg)
				}
				return
			}
			if !strings.HasPrefix(msg, "Error ["+tc.kind+"]: ") {
				t.Fatalf("unexpected message %q", msg)
			}
		})
	}
}

func TestListLocation_FlagsOverrideArgument(t *testing.T) {
	loc, err := listLocation([]string{"/unread/tag-news/5"}, "starred", "", 3, "go")
	if err != nil {
		t.Fatalf("listLocation returned error: %v", err)
	}
	want := entrylist.Location{Type: selfoss.TypeStarred, Source: 3, Search: "go", EntryID: 5}
	if loc != want {
		t.Fatalf("listLocation = %+v, want %+v", loc, want)
	}
	if _, err := listLocation(nil, "bogus", "", 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}
}
