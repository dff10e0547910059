package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/skillswap/internal/jobs"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const swapSelect = `SELECT s.id, s.requester_id, s.recipient_id,
	s.requested_skill_name, s.requested_skill_description, s.offered_skill_name, s.offered_skill_description,
	s.status, s.message, s.scheduled_date, s.completed_date,
	s.requester_rating, s.requester_comment, s.recipient_rating, s.recipient_comment,
	s.read_by_requester, s.read_by_recipient, s.created, s.updated,
	ru.name, ru.email, ru.profile_photo, cu.name, cu.email, cu.profile_photo
	FROM swaps s
	JOIN users ru ON ru.id = s.requester_id
	JOIN users cu ON cu.id = s.recipient_id`

func scanSwap(sc scanner) (*models.Swap, error) {
	var (
		s                      models.Swap
		status                 string
		scheduled, completed   sql.NullInt64
		reqRating, recRating   sql.NullInt64
		reqComment, recComment sql.NullString
		created, updated       int64
		reqPhoto, recPhoto     sql.NullString
		requester, recipient   models.UserSummary
	)
	err := sc.Scan(&s.ID, &s.RequesterID, &s.RecipientID,
		&s.RequestedSkill.Name, &s.RequestedSkill.Description, &s.OfferedSkill.Name, &s.OfferedSkill.Description,
		&status, &s.Message, &scheduled, &completed,
		&reqRating, &reqComment, &recRating, &recComment,
		&s.IsRead.Requester, &s.IsRead.Recipient, &created, &updated,
		&requester.Name, &requester.Email, &reqPhoto, &recipient.Name, &recipient.Email, &recPhoto)
	if err != nil {
		return nil, err
	}

	s.Status = models.SwapStatus(status)
	s.ScheduledDate = nullMillis(scheduled)
	s.CompletedDate = nullMillis(completed)
	s.Duration = s.DurationDays()
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)

	requester.ID = s.RequesterID
	requester.ProfilePhoto = nullString(reqPhoto)
	recipient.ID = s.RecipientID
	recipient.ProfilePhoto = nullString(recPhoto)
	s.Requester = &requester
	s.Recipient = &recipient

	if reqRating.Valid || recRating.Valid || reqComment.Valid || recComment.Valid {
		fb := &models.Feedback{RequesterComment: reqComment.String, RecipientComment: recComment.String}
		if reqRating.Valid {
			v := int(reqRating.Int64)
			fb.RequesterRating = &v
		}
		if recRating.Valid {
			v := int(recRating.Int64)
			fb.RecipientRating = &v
		}
		s.Feedback = fb
	}

	return &s, nil
}

func getSwap(ctx context.Context, q querier, id int64) (*models.Swap, error) {
	s, err := scanSwap(q.QueryRowContext(ctx, swapSelect+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get swap: %w", err)
	}

	return s, nil
}

func (r *SQLiteRepo) GetSwap(ctx context.Context, id int64) (*models.Swap, error) {
	return getSwap(ctx, r.conn.GetConn(), id)
}

// ListSwaps returns the swaps where f.UserID is a party, newest first.
func (r *SQLiteRepo) ListSwaps(ctx context.Context, f repository.SwapFilter) ([]models.Swap, int64, error) {
	where := []string{`(s.requester_id = ? OR s.recipient_id = ?)`}
	args := []any{f.UserID, f.UserID}
	if f.Status != "" {
		where = append(where, `s.status = ?`)
		args = append(args, string(f.Status))
	}
	clause := ` WHERE ` + strings.Join(where, " AND ")

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM swaps s`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count swaps: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.conn.QueryRows(ctx, swapSelect+clause+` ORDER BY s.created DESC, s.id DESC LIMIT ? OFFSET ?`, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	swaps := []models.Swap{}
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, 0, err
		}
		swaps = append(swaps, *s)
	}

	return swaps, total, rows.Err()
}

func (r *SQLiteRepo) MarkSwapRead(ctx context.Context, id, userID int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE swaps SET
		read_by_requester = CASE WHEN requester_id = ? THEN 1 ELSE read_by_requester END,
		read_by_recipient = CASE WHEN recipient_id = ? THEN 1 ELSE read_by_recipient END
		WHERE id = ?`, userID, userID, id)
	return err
}

// InTx opens a transaction and hands fn a SwapTx bound to it.
func (r *SQLiteRepo) InTx(ctx context.Context, fn func(tx repository.SwapTx) error) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&swapTx{tx: tx})
	})
}

type swapTx struct {
	tx *sql.Tx
}

var _ repository.SwapTx = (*swapTx)(nil)

func (t *swapTx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, t.tx, `u.id = ?`, id)
}

func (t *swapTx) GetSwap(ctx context.Context, id int64) (*models.Swap, error) {
	return getSwap(ctx, t.tx, id)
}

func (t *swapTx) InsertSwap(ctx context.Context, s *models.Swap) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("swap is nil")
	}

	status := s.Status
	if status == "" {
		status = models.StatusPending
	}
	ts := now()
	res, err := t.tx.ExecContext(ctx, `INSERT INTO swaps (requester_id, recipient_id, requested_skill_name, requested_skill_description,
		offered_skill_name, offered_skill_description, status, message, scheduled_date, read_by_requester, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.RequesterID, s.RecipientID, s.RequestedSkill.Name, s.RequestedSkill.Description,
		s.OfferedSkill.Name, s.OfferedSkill.Description, string(status), s.Message, toNullMillis(s.ScheduledDate), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert swap: %w", err)
	}

	return res.LastInsertId()
}

func (t *swapTx) UpdateSwapStatus(ctx context.Context, id int64, from, to models.SwapStatus, completedAt *time.Time, fb *models.Feedback) (bool, error) {
	var reqRating, reqComment, recRating, recComment any
	if fb != nil {
		if fb.RequesterRating != nil {
			reqRating = *fb.RequesterRating
		}
		if fb.RequesterComment != "" {
			reqComment = fb.RequesterComment
		}
		if fb.RecipientRating != nil {
			recRating = *fb.RecipientRating
		}
		if fb.RecipientComment != "" {
			recComment = fb.RecipientComment
		}
	}

	res, err := t.tx.ExecContext(ctx, `UPDATE swaps SET status = ?, updated = ?,
		completed_date = COALESCE(?, completed_date),
		requester_rating = COALESCE(?, requester_rating),
		requester_comment = COALESCE(?, requester_comment),
		recipient_rating = COALESCE(?, recipient_rating),
		recipient_comment = COALESCE(?, recipient_comment)
		WHERE id = ? AND status = ?`,
		string(to), now(), toNullMillis(completedAt), reqRating, reqComment, recRating, recComment, id, string(from))
	if err != nil {
		return false, fmt.Errorf("update swap status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (t *swapTx) DeletePendingSwap(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM swaps WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("delete swap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (t *swapTx) AdjustCounters(ctx context.Context, userID int64, pendingDelta, completedDelta int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET
		swaps_pending = MAX(swaps_pending + ?, 0),
		swaps_completed = MAX(swaps_completed + ?, 0),
		updated = ?
		WHERE id = ?`, pendingDelta, completedDelta, now(), userID)
	if err != nil {
		return fmt.Errorf("adjust counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("adjust counters: user %d not found", userID)
	}

	return nil
}

func (t *swapTx) InsertNotification(ctx context.Context, n *models.Notification) (int64, error) {
	return insertNotification(ctx, t.tx, n)
}

func (t *swapTx) EnqueueJob(ctx context.Context, typ string, payload []byte) (int64, error) {
	return jobs.EnqueueTx(ctx, t.tx, &jobs.Job{Type: typ, Payload: payload, ScheduledAt: time.Now()})
}
