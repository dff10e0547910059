package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/skillswap/pkg/models"
)

// ReceivedRatings returns the ratings other parties gave userID on completed
// swaps: the requester's rating when userID was the recipient and the
// recipient's rating when userID was the requester.
func (r *SQLiteRepo) ReceivedRatings(ctx context.Context, userID int64) ([]int, error) {
	rows, err := r.conn.QueryRows(ctx, `
		SELECT requester_rating FROM swaps
		 WHERE recipient_id = ? AND status = 'completed' AND requester_rating IS NOT NULL
		UNION ALL
		SELECT recipient_rating FROM swaps
		 WHERE requester_id = ? AND status = 'completed' AND recipient_rating IS NOT NULL`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("received ratings: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateRating(ctx context.Context, userID int64, rt models.Rating) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET rating_average = ?, rating_count = ?, updated = ? WHERE id = ?`, rt.Average, rt.Count, now(), userID)
	return err
}
