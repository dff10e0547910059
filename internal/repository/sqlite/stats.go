package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/garnizeh/skillswap/pkg/models"
)

func (r *SQLiteRepo) UserStats(ctx context.Context, since time.Time) (models.UserStats, error) {
	var s models.UserStats
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1),
		COALESCE(SUM(is_verified), 0), COALESCE(SUM(is_banned), 0), COALESCE(SUM(is_admin), 0),
		COALESCE(SUM(swaps_completed), 0), COALESCE(SUM(swaps_pending), 0)
		FROM users WHERE created >= ?`, sinceMillis(since)).
		Scan(&s.TotalUsers, &s.VerifiedUsers, &s.BannedUsers, &s.AdminUsers, &s.TotalCompletedSwaps, &s.TotalPendingSwaps)
	if err != nil {
		return s, fmt.Errorf("user stats: %w", err)
	}

	return s, nil
}

func (r *SQLiteRepo) SwapStats(ctx context.Context, since time.Time) (models.SwapStats, error) {
	var s models.SwapStats
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1),
		COALESCE(SUM(status = 'pending'), 0), COALESCE(SUM(status = 'accepted'), 0),
		COALESCE(SUM(status = 'completed'), 0), COALESCE(SUM(status = 'rejected'), 0),
		COALESCE(SUM(status = 'cancelled'), 0)
		FROM swaps WHERE created >= ?`, sinceMillis(since)).
		Scan(&s.TotalSwaps, &s.PendingSwaps, &s.AcceptedSwaps, &s.CompletedSwaps, &s.RejectedSwaps, &s.CancelledSwaps)
	if err != nil {
		return s, fmt.Errorf("swap stats: %w", err)
	}

	return s, nil
}

func (r *SQLiteRepo) NotificationStats(ctx context.Context, since time.Time) (models.NotificationStats, error) {
	var s models.NotificationStats
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1), COALESCE(SUM(is_read = 0), 0), COALESCE(SUM(is_read = 1), 0)
		FROM notifications WHERE created >= ?`, sinceMillis(since)).
		Scan(&s.TotalNotifications, &s.UnreadNotifications, &s.ReadNotifications)
	if err != nil {
		return s, fmt.Errorf("notification stats: %w", err)
	}

	return s, nil
}

// MonthlyUserGrowth counts sign-ups per calendar month (UTC) since from.
func (r *SQLiteRepo) MonthlyUserGrowth(ctx context.Context, from time.Time) ([]models.MonthlyCount, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT
		CAST(strftime('%Y', created / 1000, 'unixepoch') AS INTEGER) AS y,
		CAST(strftime('%m', created / 1000, 'unixepoch') AS INTEGER) AS m,
		COUNT(1)
		FROM users WHERE created >= ?
		GROUP BY y, m ORDER BY y, m`, sinceMillis(from))
	if err != nil {
		return nil, fmt.Errorf("monthly growth: %w", err)
	}
	defer rows.Close()

	out := []models.MonthlyCount{}
	for rows.Next() {
		var mc models.MonthlyCount
		if err := rows.Scan(&mc.Year, &mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) TopSkills(ctx context.Context, wanted bool, limit int) ([]models.SkillCount, error) {
	table := "skills_offered"
	if wanted {
		table = "skills_wanted"
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT name, COUNT(1) AS c FROM `+table+` GROUP BY name ORDER BY c DESC, name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top skills: %w", err)
	}
	defer rows.Close()

	out := []models.SkillCount{}
	for rows.Next() {
		var sc models.SkillCount
		if err := rows.Scan(&sc.Name, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}

	return out, rows.Err()
}
