package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/hireflow/internal/models"
)

// Task statuses.
const (
	TaskQueued  = "queued"
	TaskRunning = "running"
	TaskRetry   = "retry"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// EnqueueTask inserts a task into the tasks table and returns the new ID
func (r *SQLiteRepo) EnqueueTask(ctx context.Context, t *models.Task) (int64, error) {
	payload := string(t.Payload)
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 5
	}
	if t.ScheduledAt.IsZero() {
		t.ScheduledAt = time.Now()
	}
	ts := now()
	q := `INSERT INTO tasks(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := r.conn.Exec(ctx, q, t.Type, payload, TaskQueued, t.Attempts, t.MaxAttempts, t.Priority, t.ScheduledAt.UTC().Unix(), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	return res.LastInsertId()
}

// ClaimNext picks the next due task by priority and schedule and flips it to
// running. A task claimed concurrently by another worker is skipped.
func (r *SQLiteRepo) ClaimNext(ctx context.Context) (*models.Task, error) {
	for range 3 {
		t, err := r.nextDue(ctx)
		if err != nil || t == nil {
			return t, err
		}

		res, err := r.conn.Exec(ctx, `UPDATE tasks SET status = ?, updated = ? WHERE id = ? AND status IN (?, ?)`,
			TaskRunning, now(), t.ID, TaskQueued, TaskRetry)
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			t.Status = TaskRunning
			return t, nil
		}
	}

	return nil, nil
}

func (r *SQLiteRepo) nextDue(ctx context.Context) (*models.Task, error) {
	q := `SELECT id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated FROM tasks WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`
	ts := time.Now().UTC().Unix()
	row := r.conn.QueryRow(ctx, q, ts, ts)
	var (
		t           models.Task
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&t.ID, &t.Type, &payload, &t.Status, &t.Attempts, &t.MaxAttempts, &t.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetch next task: %w", err)
	}

	t.ScheduledAt = time.Unix(scheduledAt, 0)
	t.Created = fromMillis(created)
	t.Updated = fromMillis(updated)
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		nt := time.Unix(nextTry.Int64, 0)
		t.NextTryAt = &nt
	}
	if lastError.Valid {
		t.LastError = lastError.String
	}

	return &t, nil
}

// UpdateTask updates attempts, status, next_try_at, last_error
func (r *SQLiteRepo) UpdateTask(ctx context.Context, t *models.Task) error {
	var nextTry any
	if t.NextTryAt != nil {
		nextTry = t.NextTryAt.Unix()
	}
	q := `UPDATE tasks SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.conn.Exec(ctx, q, t.Status, t.Attempts, nextTry, t.LastError, now(), t.ID)

	return err
}

// MoveToDeadLetter moves a task to dead_letter_tasks and deletes the original
func (r *SQLiteRepo) MoveToDeadLetter(ctx context.Context, t *models.Task) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}

	insert := `INSERT INTO dead_letter_tasks(task_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.Type, string(t.Payload), t.Attempts, t.LastError, time.Now().UTC().Unix()); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, t.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepo) RequeueRunning(ctx context.Context) (int64, error) {
	res, err := r.conn.Exec(ctx, `UPDATE tasks SET status = ?, updated = ? WHERE status = ?`, TaskRetry, now(), TaskRunning)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// DeadLetterCount reports how many tasks of the given type were abandoned.
func (r *SQLiteRepo) DeadLetterCount(ctx context.Context, typ string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM dead_letter_tasks WHERE type = ?`, typ).Scan(&n)

	return n, err
}
