package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/skillswap/internal/db"
	"github.com/goccy/go-json"
)

type Repository struct {
	db *db.DB
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertJob(ctx context.Context, ex execer, j *Job) (int64, error) {
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	if j.Priority == 0 {
		j.Priority = 100
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}
	now := time.Now().UTC().UnixMilli()
	q := `INSERT INTO jobs(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := ex.ExecContext(ctx, q, j.Type, string(j.Payload), StatusQueued, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().UnixMilli(), now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	return res.LastInsertId()
}

// Enqueue inserts a job into the jobs table and returns the new ID
func (r *Repository) Enqueue(ctx context.Context, j *Job) (int64, error) {
	return insertJob(ctx, r.db.GetConn(), j)
}

// EnqueueTx inserts a job as part of a caller's transaction, so the job only
// becomes visible if the surrounding business write commits.
func EnqueueTx(ctx context.Context, tx *sql.Tx, j *Job) (int64, error) {
	return insertJob(ctx, tx, j)
}

const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

func scanJob(row *sql.Row) (*Job, error) {
	var (
		j           Job
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		return nil, err
	}
	j.ScheduledAt = time.UnixMilli(scheduledAt)
	j.Created = time.UnixMilli(created)
	j.Updated = time.UnixMilli(updated)
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.UnixMilli(nextTry.Int64)
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}
	return &j, nil
}

// Get returns the job with id, or nil when it no longer exists.
func (r *Repository) Get(ctx context.Context, id int64) (*Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

// FetchNext claims the next available job respecting priority and schedule.
// The claim is a conditional update, so a job is handed to one worker only;
// losing the race just moves on to the next candidate.
func (r *Repository) FetchNext(ctx context.Context) (*Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`
	for i := 0; i < 3; i++ {
		now := time.Now().UTC().UnixMilli()
		j, err := scanJob(r.db.QueryRow(ctx, q, now, now))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch next job: %w", err)
		}

		res, err := r.db.Exec(ctx, `UPDATE jobs SET status = 'running', updated = ? WHERE id = ? AND status = ?`, now, j.ID, j.Status)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			j.Status = StatusRunning
			return j, nil
		}
	}
	return nil, nil
}

// RequeueRunning returns jobs left in running state by a previous process to
// the retry queue.
func (r *Repository) RequeueRunning(ctx context.Context) (int64, error) {
	res, err := r.db.Exec(ctx, `UPDATE jobs SET status = 'retry', updated = ? WHERE status = 'running'`, time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.UTC().UnixMilli()
	}
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, time.Now().UTC().UnixMilli(), j.ID)
	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, j *Job) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `INSERT INTO dead_letter_jobs(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
		if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, time.Now().UTC().UnixMilli()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID)
		return err
	})
}
