package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

func insertNotification(ctx context.Context, q querier, n *models.Notification) (int64, error) {
	if n == nil {
		return 0, fmt.Errorf("notification is nil")
	}

	var sender, related any
	if n.SenderID != nil {
		sender = *n.SenderID
	}
	if n.RelatedSwapID != nil {
		related = *n.RelatedSwapID
	}
	res, err := q.ExecContext(ctx, `INSERT INTO notifications (recipient_id, sender_id, type, title, message, related_swap_id, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, n.RecipientID, sender, string(n.Type), n.Title, n.Message, related, now())
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	return res.LastInsertId()
}

// ListNotifications returns the recipient's non-deleted notifications, newest
// first, with the total matching the filter.
func (r *SQLiteRepo) ListNotifications(ctx context.Context, f repository.NotificationFilter) ([]models.Notification, int64, error) {
	clause := ` WHERE n.recipient_id = ? AND n.is_deleted = 0`
	if f.UnreadOnly {
		clause += ` AND n.is_read = 0`
	}

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM notifications n`+clause, f.RecipientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT n.id, n.recipient_id, n.sender_id, n.type, n.title, n.message, n.related_swap_id,
		n.is_read, n.is_deleted, n.created, su.name, su.profile_photo
		FROM notifications n
		LEFT JOIN users su ON su.id = n.sender_id`+clause+`
		ORDER BY n.created DESC, n.id DESC LIMIT ? OFFSET ?`, f.RecipientID, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n                 models.Notification
			typ               string
			sender, related   sql.NullInt64
			created           int64
			senderName, photo sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &sender, &typ, &n.Title, &n.Message, &related,
			&n.IsRead, &n.IsDeleted, &created, &senderName, &photo); err != nil {
			return nil, 0, err
		}
		n.Type = models.NotificationType(typ)
		n.CreatedAt = fromMillis(created)
		if sender.Valid {
			id := sender.Int64
			n.SenderID = &id
			n.Sender = &models.UserSummary{ID: id, Name: senderName.String, ProfilePhoto: nullString(photo)}
		}
		if related.Valid {
			id := related.Int64
			n.RelatedSwapID = &id
		}
		out = append(out, n)
	}

	return out, total, rows.Err()
}

func (r *SQLiteRepo) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM notifications WHERE recipient_id = ? AND is_read = 0 AND is_deleted = 0`, recipientID).Scan(&n)
	return n, err
}

// MarkRead only flips unread rows so a repeated call reports zero.
func (r *SQLiteRepo) MarkRead(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error) {
	return r.updateNotifications(ctx, `is_read = 1`, `AND is_read = 0`, recipientID, ids, all)
}

func (r *SQLiteRepo) SoftDelete(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error) {
	return r.updateNotifications(ctx, `is_deleted = 1`, ``, recipientID, ids, all)
}

func (r *SQLiteRepo) updateNotifications(ctx context.Context, set, extra string, recipientID int64, ids []int64, all bool) (int64, error) {
	if !all && len(ids) == 0 {
		return 0, nil
	}

	q := `UPDATE notifications SET ` + set + ` WHERE recipient_id = ? AND is_deleted = 0 ` + extra
	args := []any{recipientID}
	if !all {
		in, idArgs := inClause(ids)
		q += ` AND id IN (` + in + `)`
		args = append(args, idArgs...)
	}

	res, err := r.conn.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("update notifications: %w", err)
	}

	return res.RowsAffected()
}
