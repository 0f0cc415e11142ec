// Package tui is the terminal front end of the entry list. The Model renders
// entrylist snapshots and turns key presses into controller calls; all
// network and disk work runs in bubbletea commands.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/logging"
	"github.com/glabrego/selfoss-cli/internal/render/article"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	"github.com/glabrego/selfoss-cli/internal/tui/actions"
	"github.com/glabrego/selfoss-cli/internal/tui/platform"
	"github.com/glabrego/selfoss-cli/internal/tui/state"
	tuitheme "github.com/glabrego/selfoss-cli/internal/tui/theme"
	"github.com/glabrego/selfoss-cli/internal/tui/view"
)

const (
	labelReload   = "reload"
	labelMore     = "more"
	labelNavigate = "navigate"
	labelMark     = "mark"
	labelStar     = "star"
	labelMarkAll  = "mark all"

	statusTTL = 3 * time.Second
	errorTTL  = 5 * time.Second
)

// Syncer is the background synchronisation the list waits for before reading
// the offline cache.
type Syncer interface {
	actions.Syncer
	entrylist.SyncWaiter
}

type Options struct {
	Items    entrylist.ItemsAPI
	Offline  entrylist.OfflineStore
	Syncer   Syncer
	Session  actions.Session
	Counters *entrylist.CounterStore
	Behavior entrylist.Behavior
	Logger   *slog.Logger
	Start    entrylist.Location
	// SyncOnStart runs a sync before the first page is read.
	SyncOnStart bool
}

type detailKey struct {
	id      int64
	width   int
	unread  bool
	starred bool
}

// detailCache keeps the rendered article of the open entry. It is shared by
// all copies of a Model so View can fill it.
type detailCache struct {
	key   detailKey
	lines []string
}

type Model struct {
	ctx         context.Context
	ctrl        *entrylist.Controller
	screen      *screen
	router      *router
	syncer      Syncer
	session     actions.Session
	behavior    entrylist.Behavior
	log         *slog.Logger
	renderer    *article.Renderer
	theme       tuitheme.Theme
	start       entrylist.Location
	syncOnStart bool
	detail      *detailCache

	width           int
	height          int
	viewport        state.Viewport
	inDetail        bool
	detailTop       int
	showHelp        bool
	searching       bool
	query           string
	syncing         bool
	reloadAfterSync bool
	loggingIn       bool
	status          string
	statusID        int
	notice          *entrylist.Notice

	openURLFn func(context.Context, string) error
	copyURLFn func(context.Context, string) error
	nowFn     func() time.Time
}

func NewModel(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := opts.Start
	if start.Type == "" {
		start.Type = selfoss.TypeNewest
	}

	scr := &screen{}
	rt := newRouter(start)
	var waiter entrylist.SyncWaiter
	if opts.Syncer != nil {
		waiter = opts.Syncer
	}
	ctrl := entrylist.New(entrylist.Options{
		Items:    opts.Items,
		Offline:  opts.Offline,
		Sync:     waiter,
		Router:   rt,
		View:     scr,
		Counters: opts.Counters,
		Behavior: opts.Behavior,
		Logger:   logging.Component(logger, "entrylist"),
	})

	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		screen:      scr,
		router:      rt,
		syncer:      opts.Syncer,
		session:     opts.Session,
		behavior:    opts.Behavior,
		log:         logging.Component(logger, "tui"),
		renderer:    article.NewRenderer(article.DefaultOptions),
		theme:       tuitheme.Default(),
		start:       start,
		syncOnStart: opts.SyncOnStart && opts.Syncer != nil,
		detail:      &detailCache{},
		openURLFn:   platform.OpenURLInBrowser,
		copyURLFn:   platform.CopyURLToClipboard,
		nowFn:       time.Now,
	}
}

// Run shows the entry list until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := NewModel(ctx, opts)
	defer m.ctrl.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	entryID := m.start.EntryID
	waitForSync := m.syncOnStart
	reload := actions.RunCmd(m.ctx, func(ctx context.Context) error {
		return m.ctrl.Reload(ctx, entrylist.ReloadOptions{WaitForSync: waitForSync, EntryID: entryID})
	}, labelReload)
	if !m.syncOnStart {
		return reload
	}
	sync := actions.SyncCmd(m.ctx, m.syncer)
	if m.behavior.OfflineEnabled {
		// The cache is only worth reading once the sync has filled it.
		return tea.Sequence(sync, reload)
	}
	return tea.Batch(sync, reload)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ctrl.SetNarrow(state.IsNarrow(msg.Width))
		return m.settle()
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKey(msg)
	case actions.ActionDoneMsg:
		if msg.Err != nil {
			m.log.Debug("action finished with error", "action", msg.Label, "err", msg.Err, "duration", msg.Duration)
		} else if msg.Label == labelReload || msg.Label == labelMore {
			m.notice = nil
		}
		return m.settle()
	case actions.SyncDoneMsg:
		return m.syncDone(msg)
	case actions.LoginDoneMsg:
		m.loggingIn = false
		if msg.Err != nil {
			m.log.Warn("sign-in failed", "err", msg.Err)
			m.notice = &entrylist.Notice{Level: entrylist.NoticeError, Text: fmt.Sprintf("Sign-in failed: %v", msg.Err)}
			return m.settle()
		}
		m.notice = nil
		m.router.set(msg.ReturnTo)
		status := m.setStatus("Signed in", statusTTL)
		return m.settle(status, actions.RunCmd(m.ctx, m.ctrl.SetLocation(msg.ReturnTo), labelReload))
	case actions.OpenURLSuccessMsg:
		cmd := m.setStatus(msg.Status, statusTTL)
		return m, cmd
	case actions.OpenURLErrorMsg:
		cmd := m.setStatus(msg.Err.Error(), errorTTL)
		return m, cmd
	case actions.ClearStatusMsg:
		if msg.ID == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.showHelp {
		switch key {
		case "?", "esc":
			m.showHelp = false
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	snap := m.ctrl.Snapshot()
	switch key {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "j", "down":
		if m.inDetail {
			m.scrollDetail(1)
			return m, nil
		}
		return m.run(m.ctrl.Next(false), labelNavigate)
	case "k", "up":
		if m.inDetail {
			m.scrollDetail(-1)
			return m, nil
		}
		return m.run(m.ctrl.Prev(false), labelNavigate)
	case "n":
		return m.run(m.ctrl.Next(true), labelNavigate)
	case "p":
		return m.run(m.ctrl.Prev(true), labelNavigate)
	case " ":
		return m.run(m.ctrl.Throw(entrylist.Forward), labelNavigate)
	case "B":
		return m.run(m.ctrl.Throw(entrylist.Backward), labelNavigate)
	case "pgdown", "ctrl+d":
		if m.inDetail {
			m.scrollDetail(m.detailBodyHeight())
			return m, nil
		}
		return m.selectOffset(snap, state.PageStep(m.height, m.searching))
	case "pgup", "ctrl+u":
		if m.inDetail {
			m.scrollDetail(-m.detailBodyHeight())
			return m, nil
		}
		return m.selectOffset(snap, -state.PageStep(m.height, m.searching))
	case "g", "home":
		if m.inDetail {
			m.detailTop = 0
			return m, nil
		}
		return m.selectIndex(snap, 0)
	case "G", "end":
		if m.inDetail {
			m.scrollDetail(1 << 20)
			return m, nil
		}
		return m.selectIndex(snap, len(snap.Entries)-1)
	case "enter", "o":
		return m.toggleDetail(snap)
	case "esc", "backspace":
		if m.inDetail {
			return m.toggleDetail(snap)
		}
		m.notice = nil
		return m, nil
	case "m":
		if snap.SelectedID == 0 {
			return m, nil
		}
		return m.run(m.ctrl.MarkAction(snap.SelectedID, entrylist.MarkToggle), labelMark)
	case "s":
		if snap.SelectedID == 0 {
			return m, nil
		}
		return m.run(m.ctrl.StarAction(snap.SelectedID, entrylist.MarkToggle), labelStar)
	case "M":
		return m.run(m.ctrl.MarkAllVisibleReadAction(), labelMarkAll)
	case "v":
		return m.openSelected(snap, false)
	case "y":
		return m.openSelected(snap, true)
	case "a":
		return m.switchType(selfoss.TypeNewest)
	case "u":
		return m.switchType(selfoss.TypeUnread)
	case "*":
		return m.switchType(selfoss.TypeStarred)
	case "/":
		m.searching = true
		m.query = m.router.Location().Search
		return m, nil
	case "ctrl+l":
		loc := m.router.Location()
		if loc.Search == "" {
			return m, nil
		}
		loc.Search = ""
		return m.navigate(loc)
	case "r":
		return m.startSync(true)
	case "R":
		return m.retry(snap)
	case "L":
		return m.run(m.ctrl.LoadMore, labelMore)
	case "O":
		return m.run(m.ctrl.LoadOlderOnline, labelMore)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		loc := m.router.Location()
		loc.Search = strings.TrimSpace(m.query)
		m.query = ""
		return m.navigate(loc)
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	}
	return m, nil
}

func (m Model) View() string {
	snap := m.ctrl.Snapshot()
	var b strings.Builder
	b.WriteString(view.Header(m.router.Location(), m.ctrl.Counters().Snapshot(), m.ctrl.Online(), m.theme))
	b.WriteString("\n")
	b.WriteString(view.Toolbar(m.inDetail))
	b.WriteString("\n\n")

	mode := "list"
	switch {
	case m.showHelp:
		mode = "help"
		b.WriteString(helpView())
		b.WriteString("\n")
	case m.inDetail:
		mode = "detail"
		b.WriteString(m.detailView(snap))
	default:
		b.WriteString(m.listView(snap))
	}

	b.WriteString("\n")
	if m.searching {
		b.WriteString(view.SearchPrompt(m.query))
		b.WriteString("\n")
	}
	b.WriteString(view.Message(snap.Loading, m.status, m.notice, m.theme))
	b.WriteString("\n")
	b.WriteString(view.Footer(mode, len(snap.Entries), snap.HasMore, snap.OfflineExhausted, m.theme))
	b.WriteString("\n")
	return b.String()
}

func (m Model) listView(snap entrylist.State) string {
	if len(snap.Entries) == 0 {
		switch snap.Loading {
		case entrylist.LoadingInitial, entrylist.Loading:
			return "Loading entries...\n"
		case entrylist.LoadingFailure:
			return "Could not load entries.\n"
		}
		return "No entries available.\n"
	}
	vp := m.viewport
	vp.Height = m.listHeight()
	start, end := vp.Window(len(snap.Entries))
	return view.RenderListBody(view.ListRenderInput{
		State: snap,
		Start: start,
		End:   end,
		Now:   m.nowFn(),
		Width: m.contentWidth(),
	}, m.theme)
}

func (m Model) detailView(snap entrylist.State) string {
	entry, ok := snap.Selected()
	if !ok {
		return "No entry selected.\n"
	}
	lines := m.detailLines(entry)
	height := m.detailBodyHeight()
	top := min(m.detailTop, view.DetailMaxTop(len(lines), height))
	return view.RenderDetailLines(lines, top, height)
}

func (m Model) detailLines(entry selfoss.Entry) []string {
	width := m.contentWidth()
	key := detailKey{id: entry.ID, width: width, unread: entry.Unread, starred: entry.Starred}
	if m.detail.key == key && m.detail.lines != nil {
		return m.detail.lines
	}
	margin := 0
	if !state.IsNarrow(width) {
		margin = 2
	}
	lines := view.DetailLines(entry, width-2*margin, margin, m.renderer, article.WrapText, m.theme)
	m.detail.key = key
	m.detail.lines = lines
	return lines
}

func helpView() string {
	lines := []string{
		"Navigation:",
		"  j/k move (scroll in detail), n/p open next/previous, g/G first/last, pgup/pgdown page",
		"  space mark read and open next, B mark read and open previous",
		"Reading:",
		"  enter/o open or close the entry, esc back to the list",
		"Filters:",
		"  a all, u unread, * starred, / search, ctrl+l clear search",
		"Actions:",
		"  m toggle read, s toggle star, M mark all visible read, v open link, y copy link",
		"Loading:",
		"  L load more, O older entries from the server, r sync and reload, R retry",
	}
	return strings.Join(lines, "\n")
}

// settle applies the effects the controller buffered while handling the
// current message and batches them with cmds.
func (m Model) settle(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	cmds = append(cmds, m.applyEffects())
	return m, tea.Batch(cmds...)
}

func (m Model) run(action entrylist.Action, label string) (tea.Model, tea.Cmd) {
	return m.settle(actions.RunCmd(m.ctx, action, label))
}

func (m *Model) applyEffects() tea.Cmd {
	eff := m.screen.drain()
	snap := m.ctrl.Snapshot()
	total := len(snap.Entries)

	m.viewport.Height = m.listHeight()
	if eff.toTop {
		m.viewport.Top = 0
	}
	if eff.reveal != 0 {
		idx := snap.Index(eff.reveal)
		if m.behavior.ScrollToArticleHeader {
			m.viewport = m.viewport.AlignTop(idx, total)
		} else {
			m.viewport = m.viewport.Reveal(idx, total)
		}
	}
	if eff.focus != 0 {
		m.detailTop = 0
		if snap.IsExpanded(eff.focus) {
			m.inDetail = true
		}
	}
	if m.inDetail && !snap.IsExpanded(snap.SelectedID) {
		m.inDetail = false
	}
	m.viewport = m.viewport.Reveal(snap.Index(snap.SelectedID), total)

	var cmds []tea.Cmd
	for _, n := range eff.notices {
		if n.Level == entrylist.NoticeError {
			m.notice = &n
			continue
		}
		cmds = append(cmds, m.setStatus(n.Text, statusTTL))
	}
	if req, ok := m.router.takeLogin(); ok && !m.loggingIn {
		m.loggingIn = true
		m.log.Info("signing in again", "return_to", req.returnTo.Path())
		cmds = append(cmds,
			m.setStatus(req.reason, errorTTL),
			actions.LoginCmd(m.ctx, m.session, req.returnTo),
		)
	}
	return tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, ttl time.Duration) tea.Cmd {
	m.status = text
	m.statusID++
	if ttl <= 0 {
		return nil
	}
	return actions.ClearStatusCmd(m.statusID, ttl)
}

func (m Model) navigate(loc entrylist.Location) (tea.Model, tea.Cmd) {
	loc.EntryID = 0
	m.router.set(loc)
	m.inDetail = false
	m.notice = nil
	m.viewport.Top = 0
	return m.run(m.ctrl.SetLocation(loc), labelReload)
}

func (m Model) switchType(t selfoss.ItemType) (tea.Model, tea.Cmd) {
	loc := m.router.Location()
	if loc.Type == t {
		return m, nil
	}
	loc.Type = t
	return m.navigate(loc)
}

func (m Model) toggleDetail(snap entrylist.State) (tea.Model, tea.Cmd) {
	id := snap.SelectedID
	if id == 0 {
		return m.run(m.ctrl.Next(true), labelNavigate)
	}
	if m.inDetail {
		m.inDetail = false
		return m.run(m.ctrl.ToggleExpanded(id), labelNavigate)
	}
	if snap.IsExpanded(id) {
		m.inDetail = true
		m.detailTop = 0
		return m, nil
	}
	return m.run(m.ctrl.ToggleExpanded(id), labelNavigate)
}

func (m Model) selectIndex(snap entrylist.State, idx int) (tea.Model, tea.Cmd) {
	if len(snap.Entries) == 0 {
		return m, nil
	}
	idx = state.ClampCursor(idx, len(snap.Entries))
	return m.run(m.ctrl.Select(snap.Entries[idx].ID), labelNavigate)
}

func (m Model) selectOffset(snap entrylist.State, delta int) (tea.Model, tea.Cmd) {
	cur := snap.Index(snap.SelectedID)
	if cur < 0 {
		cur = 0
	}
	return m.selectIndex(snap, cur+delta)
}

func (m Model) openSelected(snap entrylist.State, copyOnly bool) (tea.Model, tea.Cmd) {
	entry, ok := snap.Selected()
	if !ok {
		return m, nil
	}
	link, err := platform.ValidateEntryURL(entry.Link)
	if err != nil {
		cmd := m.setStatus(err.Error(), errorTTL)
		return m, cmd
	}
	if copyOnly {
		return m, actions.CopyURLCmd(m.ctx, link, m.copyURLFn)
	}
	return m, actions.OpenURLCmd(m.ctx, link, m.openURLFn, m.copyURLFn)
}

func (m Model) startSync(reload bool) (tea.Model, tea.Cmd) {
	if m.syncer == nil || m.syncing {
		return m, nil
	}
	m.syncing = true
	m.reloadAfterSync = reload
	m.setStatus("Syncing...", 0)
	return m, actions.SyncCmd(m.ctx, m.syncer)
}

func (m Model) syncDone(msg actions.SyncDoneMsg) (tea.Model, tea.Cmd) {
	m.syncing = false
	reload := m.reloadAfterSync
	m.reloadAfterSync = false

	if msg.Err != nil {
		m.log.Warn("sync failed", "err", msg.Err, "duration", msg.Duration)
		if selfoss.IsAuthError(msg.Err) {
			m.router.RedirectToLogin(m.router.Location(), "Sign in again to sync.")
			return m.settle()
		}
		m.status = ""
		m.notice = &entrylist.Notice{Level: entrylist.NoticeError, Text: fmt.Sprintf("Sync failed: %v", msg.Err)}
		return m.settle()
	}

	m.log.Info("sync finished",
		"saved", msg.Result.Saved,
		"replayed", msg.Result.Replayed,
		"dropped", msg.Result.Dropped,
		"duration", msg.Duration,
	)
	status := m.setStatus(fmt.Sprintf("Synced: %d saved, %d changes sent", msg.Result.Saved, msg.Result.Replayed), statusTTL)
	if !reload {
		return m.settle(status)
	}
	var entryID int64
	if m.inDetail {
		entryID = m.ctrl.Snapshot().SelectedID
	}
	return m.settle(status, actions.RunCmd(m.ctx, func(ctx context.Context) error {
		return m.ctrl.Reload(ctx, entrylist.ReloadOptions{EntryID: entryID})
	}, labelReload))
}

func (m Model) retry(snap entrylist.State) (tea.Model, tea.Cmd) {
	if m.notice == nil || !m.notice.Retryable {
		return m, nil
	}
	m.notice = nil
	// A failed append keeps its advanced cursor, so retrying appends again.
	opts := entrylist.ReloadOptions{Append: len(snap.Entries) > 0}
	return m.run(func(ctx context.Context) error {
		return m.ctrl.Reload(ctx, opts)
	}, labelReload)
}

func (m *Model) scrollDetail(delta int) {
	entry, ok := m.ctrl.Snapshot().Selected()
	if !ok {
		return
	}
	maxTop := view.DetailMaxTop(len(m.detailLines(entry)), m.detailBodyHeight())
	m.detailTop = max(0, min(m.detailTop+delta, maxTop))
}

func (m Model) listHeight() int {
	if m.height <= 0 {
		return 0
	}
	return state.PageStep(m.height, m.searching)
}

func (m Model) contentWidth() int {
	if m.width > 0 {
		return m.width - 1
	}
	return 100
}

func (m Model) detailBodyHeight() int {
	if m.height > 0 {
		if h := m.height - 6; h > 3 {
			return h
		}
		return 3
	}
	return 16
}
