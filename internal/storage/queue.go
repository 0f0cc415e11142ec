package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

func (r *Repository) EnqueueStatus(ctx context.Context, update selfoss.StatusUpdate) error {
	return r.EnqueueStatuses(ctx, []selfoss.StatusUpdate{update})
}

// EnqueueStatuses stores changes for later replay. A newer change to the same
// entry field replaces the older one.
func (r *Repository) EnqueueStatuses(ctx context.Context, updates []selfoss.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM status_queue WHERE entry_id = ? AND field = ?`)
	if err != nil {
		return fmt.Errorf("prepare queue delete: %w", err)
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, `INSERT INTO status_queue (entry_id, field, value, queued_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare queue insert: %w", err)
	}
	defer ins.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		if u.Field != selfoss.FieldUnread && u.Field != selfoss.FieldStarred {
			return fmt.Errorf("enqueue status for entry %d: unknown field %q", u.EntryID, u.Field)
		}
		queuedAt := u.QueuedAt
		if queuedAt.IsZero() {
			queuedAt = now
		}
		if _, err := del.ExecContext(ctx, u.EntryID, string(u.Field)); err != nil {
			return fmt.Errorf("replace queued status for entry %d: %w", u.EntryID, err)
		}
		if _, err := ins.ExecContext(ctx, u.EntryID, string(u.Field), u.Value, queuedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("enqueue status for entry %d: %w", u.EntryID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) PendingStatuses(ctx context.Context) ([]selfoss.StatusUpdate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT seq, entry_id, field, value, queued_at FROM status_queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query status queue: %w", err)
	}
	defer rows.Close()

	var out []selfoss.StatusUpdate
	for rows.Next() {
		var (
			u        selfoss.StatusUpdate
			field    string
			queuedAt string
		)
		if err := rows.Scan(&u.Seq, &u.EntryID, &field, &u.Value, &queuedAt); err != nil {
			return nil, fmt.Errorf("scan status queue: %w", err)
		}
		u.Field = selfoss.StatusField(field)
		u.QueuedAt, err = time.Parse(time.RFC3339Nano, queuedAt)
		if err != nil {
			return nil, fmt.Errorf("parse queued_at %q: %w", queuedAt, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteStatuses(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
	args := make([]any, 0, len(seqs))
	for _, seq := range seqs {
		args = append(args, seq)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM status_queue WHERE seq IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete queued statuses: %w", err)
	}
	return nil
}

type pendingKey struct {
	entryID int64
	field   selfoss.StatusField
}

func pendingValues(ctx context.Context, tx *sql.Tx) (map[pendingKey]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT entry_id, field, value FROM status_queue`)
	if err != nil {
		return nil, fmt.Errorf("query status queue: %w", err)
	}
	defer rows.Close()

	out := make(map[pendingKey]bool)
	for rows.Next() {
		var (
			id    int64
			field string
			value bool
		)
		if err := rows.Scan(&id, &field, &value); err != nil {
			return nil, fmt.Errorf("scan status queue: %w", err)
		}
		out[pendingKey{id, selfoss.StatusField(field)}] = value
	}
	return out, rows.Err()
}
