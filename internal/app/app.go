package app

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type SelfossClient interface {
	GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error)
	Mark(ctx context.Context, id int64, unread bool) error
	MarkAll(ctx context.Context, ids []int64) error
	Starr(ctx context.Context, id int64, starred bool) error
	GetStats(ctx context.Context) (selfoss.Stats, error)
	ListSourceStats(ctx context.Context) ([]selfoss.SourceStats, error)
	ListTags(ctx context.Context) ([]selfoss.TagStats, error)
	RefreshSingle(ctx context.Context, sourceID int64) error
	RefreshAll(ctx context.Context) error
}

type Repository interface {
	SaveEntries(ctx context.Context, entries []selfoss.Entry) error
	EntriesMark(ctx context.Context, ids []int64, unread bool) error
	EntryStar(ctx context.Context, id int64, starred bool) error
	Stats(ctx context.Context) (selfoss.Stats, error)
	EnqueueStatuses(ctx context.Context, updates []selfoss.StatusUpdate) error
	PendingStatuses(ctx context.Context) ([]selfoss.StatusUpdate, error)
	DeleteStatuses(ctx context.Context, seqs []int64) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Options struct {
	PageSize      int
	RetentionDays int
	Counters      *entrylist.CounterStore
	Logger        *slog.Logger
	// NewBackOff returns the retry policy for replaying one queued change.
	NewBackOff func() backoff.BackOff
}

// Service keeps the offline cache and the counters in step with the server.
type Service struct {
	client   SelfossClient
	repo     Repository
	counters *entrylist.CounterStore
	log      *slog.Logger
	pageSize int
	keepDays int
	backOff  func() backoff.BackOff

	group   singleflight.Group
	mu      sync.Mutex
	running chan struct{}
	lastErr error
}

type SyncResult struct {
	Replayed int
	Dropped  int
	Saved    int
	Pruned   int64
}

func NewService(client SelfossClient, repo Repository, opts Options) *Service {
	s := &Service{
		client:   client,
		repo:     repo,
		counters: opts.Counters,
		log:      opts.Logger,
		pageSize: opts.PageSize,
		keepDays: opts.RetentionDays,
		backOff:  opts.NewBackOff,
	}
	if s.counters == nil {
		s.counters = entrylist.NewCounterStore()
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.pageSize < 1 {
		s.pageSize = 50
	}
	if s.backOff == nil {
		s.backOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}
	return s
}

func (s *Service) Counters() *entrylist.CounterStore {
	return s.counters
}

// Sync replays queued status changes, then refreshes the cache and the
// counters. Concurrent calls share one run.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if s.running == nil {
		s.running = make(chan struct{})
	}
	s.mu.Unlock()

	ch := s.group.DoChan("sync", func() (any, error) {
		return s.sync(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		result, _ := res.Val.(SyncResult)
		return result, res.Err
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}
}

// Wait blocks until the running sync, if any, has finished and returns its
// error.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running == nil {
		return nil
	}
	select {
	case <-running:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) sync(ctx context.Context) (result SyncResult, err error) {
	s.mu.Lock()
	if s.running == nil {
		s.running = make(chan struct{})
	}
	done := s.running
	s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.running = nil
		s.lastErr = err
		s.mu.Unlock()
		close(done)
		s.log.Info("sync finished", "replayed", result.Replayed, "dropped", result.Dropped, "saved", result.Saved, "duration", time.Since(start), "err", err)
	}()

	result.Replayed, result.Dropped, err = s.replay(ctx)
	if err != nil {
		return result, err
	}
	result.Saved, err = s.pull(ctx)
	if err != nil {
		return result, err
	}
	if s.keepDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.keepDays)
		result.Pruned, err = s.repo.PruneOlderThan(ctx, cutoff)
		if err != nil {
			return result, fmt.Errorf("prune cache: %w", err)
		}
	}
	return result, nil
}

// replay sends the last queued value of every entry flag. Earlier changes to
// the same flag are superseded and deleted without being sent, so each flag is
// sent at most once and the order between the remaining changes does not
// matter: reads of many entries go out as one bulk request. Changes the server
// rejects are dropped; network failures stop the replay and keep the rest
// queued.
func (s *Service) replay(ctx context.Context) (replayed, dropped int, err error) {
	queued, err := s.repo.PendingStatuses(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load queued changes: %w", err)
	}
	pending, superseded := latestStatuses(queued)
	if len(superseded) > 0 {
		if err := s.repo.DeleteStatuses(ctx, superseded); err != nil {
			return 0, 0, fmt.Errorf("delete superseded changes: %w", err)
		}
		s.log.Debug("dropped superseded queued changes", "changes", len(superseded))
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	var (
		reads   []selfoss.StatusUpdate
		singles []selfoss.StatusUpdate
	)
	for _, u := range pending {
		if u.Field == selfoss.FieldUnread && !u.Value {
			reads = append(reads, u)
		} else {
			singles = append(singles, u)
		}
	}

	if len(reads) > 0 {
		ids := make([]int64, 0, len(reads))
		for _, u := range reads {
			ids = append(ids, u.EntryID)
		}
		n, d, err := s.send(ctx, reads, func(ctx context.Context) error {
			return s.client.MarkAll(ctx, ids)
		})
		replayed, dropped = replayed+n, dropped+d
		if err != nil {
			return replayed, dropped, err
		}
	}

	for _, u := range singles {
		n, d, err := s.send(ctx, []selfoss.StatusUpdate{u}, func(ctx context.Context) error {
			if u.Field == selfoss.FieldStarred {
				return s.client.Starr(ctx, u.EntryID, u.Value)
			}
			return s.client.Mark(ctx, u.EntryID, u.Value)
		})
		replayed, dropped = replayed+n, dropped+d
		if err != nil {
			return replayed, dropped, err
		}
	}
	return replayed, dropped, nil
}

// latestStatuses keeps the highest-Seq change per entry and field, in Seq
// order, and returns the Seq of every change it left out.
func latestStatuses(queued []selfoss.StatusUpdate) (latest []selfoss.StatusUpdate, superseded []int64) {
	type key struct {
		id    int64
		field selfoss.StatusField
	}
	ordered := slices.Clone(queued)
	slices.SortStableFunc(ordered, func(a, b selfoss.StatusUpdate) int { return cmp.Compare(a.Seq, b.Seq) })

	last := make(map[key]int64, len(ordered))
	for _, u := range ordered {
		last[key{u.EntryID, u.Field}] = u.Seq
	}
	for _, u := range ordered {
		if last[key{u.EntryID, u.Field}] == u.Seq {
			latest = append(latest, u)
		} else {
			superseded = append(superseded, u.Seq)
		}
	}
	return latest, superseded
}

func (s *Service) send(ctx context.Context, updates []selfoss.StatusUpdate, op func(context.Context) error) (replayed, dropped int, err error) {
	attempt := func() error {
		err := op(ctx)
		if err == nil || selfoss.IsNetworkError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("replay failed, retrying", "changes", len(updates), "wait", wait, "err", err)
	}
	sendErr := backoff.RetryNotify(attempt, backoff.WithContext(s.backOff(), ctx), notify)
	switch {
	case sendErr == nil:
		replayed = len(updates)
	case selfoss.IsAuthError(sendErr):
		return 0, 0, fmt.Errorf("replay queued changes: %w", sendErr)
	case selfoss.IsNetworkError(sendErr) || selfoss.IsCanceled(sendErr):
		return 0, 0, fmt.Errorf("replay queued changes: %w", sendErr)
	default:
		s.log.Error("server rejected queued change, dropping it", "changes", len(updates), "err", sendErr)
		dropped = len(updates)
	}

	seqs := make([]int64, 0, len(updates))
	for _, u := range updates {
		seqs = append(seqs, u.Seq)
	}
	if err := s.repo.DeleteStatuses(ctx, seqs); err != nil {
		return 0, 0, fmt.Errorf("delete replayed changes: %w", err)
	}
	return replayed, dropped, nil
}

// pull refreshes the cached newest, unread and starred pages and the counters
// concurrently.
func (s *Service) pull(ctx context.Context) (int, error) {
	g, gctx := errgroup.WithContext(ctx)

	types := []selfoss.ItemType{selfoss.TypeNewest, selfoss.TypeUnread, selfoss.TypeStarred}
	pages := make([][]selfoss.Entry, len(types))
	for i, typ := range types {
		g.Go(func() error {
			page, err := s.client.GetEntries(gctx, selfoss.ItemsQuery{Type: typ, Limit: s.pageSize})
			if err != nil {
				return fmt.Errorf("fetch %s entries: %w", typ, err)
			}
			pages[i] = page.Entries
			return nil
		})
	}

	var (
		stats   selfoss.Stats
		sources []selfoss.SourceStats
		tags    []selfoss.TagStats
	)
	g.Go(func() error {
		var err error
		stats, err = s.client.GetStats(gctx)
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sources, err = s.client.ListSourceStats(gctx)
		if err != nil {
			return fmt.Errorf("fetch source stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tags, err = s.client.ListTags(gctx)
		if err != nil {
			return fmt.Errorf("fetch tags: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}

	seen := map[int64]struct{}{}
	var entries []selfoss.Entry
	for _, page := range pages {
		for _, e := range page {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			entries = append(entries, e)
		}
	}
	if err := s.repo.SaveEntries(ctx, entries); err != nil {
		return 0, fmt.Errorf("save entries to cache: %w", err)
	}
	s.counters.Reset(stats, sources, tags)
	return len(entries), nil
}

// Stats returns the server counters, or the cached ones when the server is
// unreachable. The flag reports which.
func (s *Service) Stats(ctx context.Context) (selfoss.Stats, bool, error) {
	stats, err := s.client.GetStats(ctx)
	if err == nil {
		return stats, false, nil
	}
	if !selfoss.IsNetworkError(err) {
		return selfoss.Stats{}, false, fmt.Errorf("fetch stats: %w", err)
	}
	s.log.Warn("server unreachable, using cached stats", "err", err)
	stats, cacheErr := s.repo.Stats(ctx)
	if cacheErr != nil {
		return selfoss.Stats{}, false, fmt.Errorf("fetch stats: %w (cache: %v)", err, cacheErr)
	}
	return stats, true, nil
}

// SetStatus writes a flag for entries outside any loaded list. The cache is
// updated first; when the server is unreachable the change is queued and
// queued is true. Any other failure reverts the cache.
func (s *Service) SetStatus(ctx context.Context, ids []int64, field selfoss.StatusField, value bool) (queued bool, err error) {
	if len(ids) == 0 {
		return false, nil
	}
	if err := s.writeCache(ctx, ids, field, value); err != nil {
		s.log.Warn("cache update failed", "field", field, "entries", len(ids), "err", err)
	}

	err = s.sendStatus(ctx, ids, field, value)
	switch {
	case err == nil:
		return false, nil
	case selfoss.IsNetworkError(err):
		now := time.Now().UTC()
		updates := make([]selfoss.StatusUpdate, 0, len(ids))
		for _, id := range ids {
			updates = append(updates, selfoss.StatusUpdate{EntryID: id, Field: field, Value: value, QueuedAt: now})
		}
		if qerr := s.repo.EnqueueStatuses(ctx, updates); qerr != nil {
			return false, fmt.Errorf("queue status change: %w", qerr)
		}
		s.log.Info("server unreachable, queued status change", "field", field, "entries", len(ids))
		return true, nil
	}

	if rerr := s.writeCache(ctx, ids, field, !value); rerr != nil {
		s.log.Warn("cache rollback failed", "field", field, "err", rerr)
	}
	return false, fmt.Errorf("update %s: %w", field, err)
}

func (s *Service) sendStatus(ctx context.Context, ids []int64, field selfoss.StatusField, value bool) error {
	if field == selfoss.FieldUnread && !value {
		return s.client.MarkAll(ctx, ids)
	}
	for _, id := range ids {
		var err error
		if field == selfoss.FieldStarred {
			err = s.client.Starr(ctx, id, value)
		} else {
			err = s.client.Mark(ctx, id, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeCache(ctx context.Context, ids []int64, field selfoss.StatusField, value bool) error {
	if field == selfoss.FieldUnread {
		return s.repo.EntriesMark(ctx, ids, value)
	}
	for _, id := range ids {
		if err := s.repo.EntryStar(ctx, id, value); err != nil {
			return err
		}
	}
	return nil
}

// RefreshSource asks the server to update one source, then syncs.
func (s *Service) RefreshSource(ctx context.Context, sourceID int64) (SyncResult, error) {
	if err := s.client.RefreshSingle(ctx, sourceID); err != nil {
		return SyncResult{}, fmt.Errorf("refresh source %d: %w", sourceID, err)
	}
	return s.Sync(ctx)
}

func (s *Service) RefreshAll(ctx context.Context) (SyncResult, error) {
	if err := s.client.RefreshAll(ctx); err != nil {
		return SyncResult{}, fmt.Errorf("refresh sources: %w", err)
	}
	return s.Sync(ctx)
}
