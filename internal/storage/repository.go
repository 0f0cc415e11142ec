package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

const defaultPageSize = 50

// Repository is the offline cache: entries plus the queue of status changes
// that have not reached the server yet.
type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	if err := runMigrations(ctx, r.db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CheckWritable fails early when the database file is read-only.
func (r *Repository) CheckWritable(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS write_probe (x INTEGER)`); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_migrations SET name = name WHERE 0`); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	return nil
}

func (r *Repository) SaveEntries(ctx context.Context, entries []selfoss.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO entries (id, source_id, source_title, title, content, author, link, datetime_ns, updated_ns, word_count, unread, starred, tags, thumbnail, icon, cached_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  source_id=excluded.source_id,
  source_title=excluded.source_title,
  title=excluded.title,
  content=excluded.content,
  author=excluded.author,
  link=excluded.link,
  datetime_ns=excluded.datetime_ns,
  updated_ns=excluded.updated_ns,
  word_count=excluded.word_count,
  unread=excluded.unread,
  starred=excluded.starred,
  tags=excluded.tags,
  thumbnail=excluded.thumbnail,
  icon=excluded.icon,
  cached_at=excluded.cached_at
`)
	if err != nil {
		return fmt.Errorf("prepare save statement: %w", err)
	}
	defer stmt.Close()

	// Local flags with a pending queued change win over the server copy.
	pending, err := pendingValues(ctx, tx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, entry := range entries {
		tags, err := json.Marshal(entry.Tags)
		if err != nil {
			return fmt.Errorf("encode tags for entry %d: %w", entry.ID, err)
		}
		unread, starred := entry.Unread, entry.Starred
		if v, ok := pending[pendingKey{entry.ID, selfoss.FieldUnread}]; ok {
			unread = v
		}
		if v, ok := pending[pendingKey{entry.ID, selfoss.FieldStarred}]; ok {
			starred = v
		}
		if _, err := stmt.ExecContext(
			ctx,
			entry.ID,
			entry.SourceID,
			entry.SourceTitle,
			entry.Title,
			entry.Content,
			entry.Author,
			entry.Link,
			entry.Datetime.UnixNano(),
			unixNanoOrZero(entry.UpdateTime),
			entry.WordCount,
			unread,
			starred,
			string(tags),
			entry.Thumbnail,
			entry.Icon,
			now,
		); err != nil {
			return fmt.Errorf("save entry %d: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetEntries pages through the cache newest first. The cursor is an exclusive
// bound on (datetime, id) so entries sharing a timestamp are neither skipped
// nor repeated across pages.
func (r *Repository) GetEntries(ctx context.Context, q selfoss.ItemsQuery) (selfoss.EntriesPage, error) {
	if q.HasServerOnlyFilter() {
		return selfoss.EntriesPage{}, ErrUnsupportedFilter
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}

	var (
		where []string
		args  []any
	)
	switch q.Type {
	case selfoss.TypeUnread:
		where = append(where, "unread = 1")
	case selfoss.TypeStarred:
		where = append(where, "starred = 1")
	}
	if !q.FromDatetime.IsZero() {
		from := q.FromDatetime.UnixNano()
		where = append(where, "(datetime_ns < ? OR (datetime_ns = ? AND id < ?))")
		args = append(args, from, from, q.FromID)
	}

	query := `
SELECT id, source_id, source_title, title, content, author, link, datetime_ns, updated_ns, word_count, unread, starred, tags, thumbnail, icon
FROM entries`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY datetime_ns DESC, id DESC\nLIMIT ?"
	// One extra row tells whether another page exists.
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return selfoss.EntriesPage{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]selfoss.Entry, 0, limit+1)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return selfoss.EntriesPage{}, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return selfoss.EntriesPage{}, fmt.Errorf("rows iteration: %w", err)
	}

	page := selfoss.EntriesPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.HasMore = true
	}
	return page, nil
}

func (r *Repository) GetEntry(ctx context.Context, id int64) (selfoss.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_id, source_title, title, content, author, link, datetime_ns, updated_ns, word_count, unread, starred, tags, thumbnail, icon
FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return selfoss.Entry{}, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return entry, err
}

func (r *Repository) EntryMark(ctx context.Context, id int64, unread bool) error {
	return r.setFlag(ctx, "unread", []int64{id}, unread)
}

func (r *Repository) EntriesMark(ctx context.Context, ids []int64, unread bool) error {
	return r.setFlag(ctx, "unread", ids, unread)
}

func (r *Repository) EntryStar(ctx context.Context, id int64, starred bool) error {
	return r.setFlag(ctx, "starred", []int64{id}, starred)
}

func (r *Repository) setFlag(ctx context.Context, column string, ids []int64, value bool) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE entries SET `+column+` = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare %s update: %w", column, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, value, id); err != nil {
			return fmt.Errorf("update %s for entry %d: %w", column, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Stats derives counters from the cached entries.
func (r *Repository) Stats(ctx context.Context) (selfoss.Stats, error) {
	var stats selfoss.Stats
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(unread), 0), COALESCE(SUM(starred), 0) FROM entries`).
		Scan(&stats.Total, &stats.Unread, &stats.Starred)
	if err != nil {
		return selfoss.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// PruneOlderThan drops read, unstarred entries cached before cutoff.
func (r *Repository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM entries
WHERE unread = 0 AND starred = 0 AND datetime_ns < ?
  AND id NOT IN (SELECT entry_id FROM status_queue)`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (selfoss.Entry, error) {
	var (
		entry      selfoss.Entry
		datetimeNS int64
		updatedNS  int64
		tags       string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.SourceID,
		&entry.SourceTitle,
		&entry.Title,
		&entry.Content,
		&entry.Author,
		&entry.Link,
		&datetimeNS,
		&updatedNS,
		&entry.WordCount,
		&entry.Unread,
		&entry.Starred,
		&tags,
		&entry.Thumbnail,
		&entry.Icon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return selfoss.Entry{}, err
		}
		return selfoss.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	entry.Datetime = time.Unix(0, datetimeNS).UTC()
	if updatedNS != 0 {
		entry.UpdateTime = time.Unix(0, updatedNS).UTC()
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return selfoss.Entry{}, fmt.Errorf("decode tags for entry %d: %w", entry.ID, err)
	}
	return entry, nil
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
