package rating

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/garnizeh/skillswap/internal/jobs"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
	"github.com/goccy/go-json"
)

// JobType is the background job that refreshes a user's rating.
const JobType = "rating.recompute"

// Payload is the body of a JobType job.
type Payload struct {
	UserID int64 `json:"user_id"`
}

// Aggregate averages ratings, rounded to one decimal.
func Aggregate(ratings []int) models.Rating {
	if len(ratings) == 0 {
		return models.Rating{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return models.Rating{Average: math.Round(avg*10) / 10, Count: len(ratings)}
}

// Recompute rebuilds the stored rating of userID from completed swaps.
func Recompute(ctx context.Context, repo repository.RatingRepo, userID int64) (models.Rating, error) {
	ratings, err := repo.ReceivedRatings(ctx, userID)
	if err != nil {
		return models.Rating{}, err
	}
	r := Aggregate(ratings)
	if err := repo.UpdateRating(ctx, userID, r); err != nil {
		return models.Rating{}, fmt.Errorf("update rating: %w", err)
	}
	return r, nil
}

// Handler adapts Recompute to the worker pool.
func Handler(repo repository.RatingRepo, logger *slog.Logger) jobs.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *jobs.Job) error {
		var p Payload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if p.UserID <= 0 {
			return fmt.Errorf("invalid user id %d", p.UserID)
		}
		r, err := Recompute(ctx, repo, p.UserID)
		if err != nil {
			return err
		}
		logger.Debug("rating recomputed", "user_id", p.UserID, "average", r.Average, "count", r.Count)
		return nil
	}
}

// NewPayload encodes the job body for userID.
func NewPayload(userID int64) ([]byte, error) {
	return json.Marshal(Payload{UserID: userID})
}
