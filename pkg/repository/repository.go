package repository

import (
	"context"
	"time"

	"github.com/garnizeh/skillswap/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups of a single entity return (nil, nil) when it does not exist.

// UserFilter narrows user listings. Zero values disable a filter.
type UserFilter struct {
	Search       string
	Availability models.Availability
	SkillLevel   models.SkillLevel
	// Location is "remote" or "local".
	Location string
	// Status is "banned" or "active"; admin listings only.
	Status     string
	PublicOnly bool
	Limit      int
	Offset     int
}

// ProfileUpdate carries the user editable fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Name                *string
	Location            *string
	Bio                 *string
	ProfilePhoto        *string
	SkillsOffered       *[]models.SkillOffered
	SkillsWanted        *[]models.SkillWanted
	Availability        *models.Availability
	AvailabilityDetails *models.AvailabilityDetails
	IsPublic            *bool
}

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error
	TouchLastActive(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	SetBanned(ctx context.Context, id int64, banned bool, reason string) error
	SetVerified(ctx context.Context, id int64, verified bool) error
}

// RatingRepo backs the rating aggregation job.
type RatingRepo interface {
	ReceivedRatings(ctx context.Context, userID int64) ([]int, error)
	UpdateRating(ctx context.Context, userID int64, r models.Rating) error
}

type SwapFilter struct {
	UserID int64
	Status models.SwapStatus
	Limit  int
	Offset int
}

type SwapRepo interface {
	GetSwap(ctx context.Context, id int64) (*models.Swap, error)
	ListSwaps(ctx context.Context, f SwapFilter) ([]models.Swap, int64, error)
	// MarkSwapRead sets the read flag of the party userID on the swap.
	MarkSwapRead(ctx context.Context, id, userID int64) error
	// InTx runs fn in one transaction. Any error returned by fn rolls back
	// every write made through the SwapTx.
	InTx(ctx context.Context, fn func(tx SwapTx) error) error
}

// SwapTx is the set of writes a swap lifecycle operation performs. All of
// them belong to the transaction opened by SwapRepo.InTx.
type SwapTx interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetSwap(ctx context.Context, id int64) (*models.Swap, error)
	InsertSwap(ctx context.Context, s *models.Swap) (int64, error)
	// UpdateSwapStatus flips the status only if it still equals from. It
	// reports whether a row was updated.
	UpdateSwapStatus(ctx context.Context, id int64, from, to models.SwapStatus, completedAt *time.Time, fb *models.Feedback) (bool, error)
	// DeletePendingSwap deletes the swap only while it is pending.
	DeletePendingSwap(ctx context.Context, id int64) (bool, error)
	// AdjustCounters applies relative deltas; results are clamped at zero.
	AdjustCounters(ctx context.Context, userID int64, pendingDelta, completedDelta int) error
	InsertNotification(ctx context.Context, n *models.Notification) (int64, error)
	EnqueueJob(ctx context.Context, typ string, payload []byte) (int64, error)
}

type NotificationFilter struct {
	RecipientID int64
	UnreadOnly  bool
	Limit       int
	Offset      int
}

type NotificationRepo interface {
	ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
	// MarkRead and SoftDelete only touch the recipient's non-deleted rows;
	// with all set ids is ignored. They return the number of rows changed.
	MarkRead(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error)
	SoftDelete(ctx context.Context, recipientID int64, ids []int64, all bool) (int64, error)
}

// StatsRepo aggregates platform statistics. A zero since disables the
// period filter.
type StatsRepo interface {
	UserStats(ctx context.Context, since time.Time) (models.UserStats, error)
	SwapStats(ctx context.Context, since time.Time) (models.SwapStats, error)
	NotificationStats(ctx context.Context, since time.Time) (models.NotificationStats, error)
	MonthlyUserGrowth(ctx context.Context, from time.Time) ([]models.MonthlyCount, error)
	TopSkills(ctx context.Context, wanted bool, limit int) ([]models.SkillCount, error)
}
