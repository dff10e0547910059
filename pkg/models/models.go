package models

import (
	"math"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type SwapStatus string

const (
	StatusPending   SwapStatus = "pending"
	StatusAccepted  SwapStatus = "accepted"
	StatusRejected  SwapStatus = "rejected"
	StatusCompleted SwapStatus = "completed"
	StatusCancelled SwapStatus = "cancelled"
)

// Valid reports whether s is one of the known swap states.
func (s SwapStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type NotificationType string

const (
	NotifSwapRequest   NotificationType = "swap_request"
	NotifSwapAccepted  NotificationType = "swap_accepted"
	NotifSwapRejected  NotificationType = "swap_rejected"
	NotifSwapCompleted NotificationType = "swap_completed"
	NotifSwapCancelled NotificationType = "swap_cancelled"
)

type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

type SkillPriority string

const (
	PriorityLow    SkillPriority = "low"
	PriorityMedium SkillPriority = "medium"
	PriorityHigh   SkillPriority = "high"
)

type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "offline"
)

type SkillOffered struct {
	Name        string     `json:"name" yaml:"name" validate:"required,max=100"`
	Level       SkillLevel `json:"level" yaml:"level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Description string     `json:"description,omitempty" yaml:"description" validate:"max=200"`
}

type SkillWanted struct {
	Name        string        `json:"name" yaml:"name" validate:"required,max=100"`
	Priority    SkillPriority `json:"priority" yaml:"priority" validate:"omitempty,oneof=low medium high"`
	Description string        `json:"description,omitempty" yaml:"description" validate:"max=200"`
}

type AvailabilityDetails struct {
	Weekdays       bool   `json:"weekdays"`
	Weekends       bool   `json:"weekends"`
	Evenings       bool   `json:"evenings"`
	CustomSchedule string `json:"customSchedule,omitempty" validate:"max=200"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Formatted renders the average with one decimal, e.g. "4.8".
func (r Rating) Formatted() float64 {
	return math.Round(r.Average*10) / 10
}

// SwapCounters is a denormalized cache of the user's swaps; it is adjusted
// with relative updates in the same transaction as the swap it describes.
type SwapCounters struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type User struct {
	ID                  int64               `json:"id"`
	Name                string              `json:"name"`
	Email               string              `json:"email,omitempty"`
	PasswordHash        string              `json:"-"`
	Location            string              `json:"location"`
	Bio                 string              `json:"bio"`
	ProfilePhoto        *string             `json:"profilePhoto"`
	SkillsOffered       []SkillOffered      `json:"skillsOffered"`
	SkillsWanted        []SkillWanted       `json:"skillsWanted"`
	Availability        Availability        `json:"availability"`
	AvailabilityDetails AvailabilityDetails `json:"availabilityDetails"`
	IsPublic            bool                `json:"isPublic"`
	Rating              Rating              `json:"rating"`
	TotalSwaps          SwapCounters        `json:"totalSwaps"`
	IsAdmin             bool                `json:"isAdmin"`
	IsVerified          bool                `json:"isVerified"`
	IsBanned            bool                `json:"isBanned"`
	BanReason           *string             `json:"banReason,omitempty"`
	LastActive          time.Time           `json:"lastActive"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// Public returns a copy suitable for other users: no email, no ban reason.
func (u User) Public() User {
	u.Email = ""
	u.BanReason = nil
	return u
}

// UserSummary is the subset of a user embedded in swaps and notifications.
type UserSummary struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	ProfilePhoto *string `json:"profilePhoto,omitempty"`
}

type Skill struct {
	Name        string `json:"name" yaml:"name" validate:"required,max=100"`
	Description string `json:"description" yaml:"description" validate:"max=500"`
}

type Feedback struct {
	RequesterRating  *int   `json:"requesterRating,omitempty" yaml:"requester_rating" validate:"omitempty,min=1,max=5"`
	RequesterComment string `json:"requesterComment,omitempty" yaml:"requester_comment" validate:"max=500"`
	RecipientRating  *int   `json:"recipientRating,omitempty" yaml:"recipient_rating" validate:"omitempty,min=1,max=5"`
	RecipientComment string `json:"recipientComment,omitempty" yaml:"recipient_comment" validate:"max=500"`
}

type ReadFlags struct {
	Requester bool `json:"requester"`
	Recipient bool `json:"recipient"`
}

type Swap struct {
	ID             int64        `json:"id"`
	RequesterID    int64        `json:"requesterId"`
	RecipientID    int64        `json:"recipientId"`
	Requester      *UserSummary `json:"requester,omitempty"`
	Recipient      *UserSummary `json:"recipient,omitempty"`
	RequestedSkill Skill        `json:"requestedSkill"`
	OfferedSkill   Skill        `json:"offeredSkill"`
	Status         SwapStatus   `json:"status"`
	Message        string       `json:"message"`
	ScheduledDate  *time.Time   `json:"scheduledDate,omitempty"`
	CompletedDate  *time.Time   `json:"completedDate,omitempty"`
	Duration       *int         `json:"duration,omitempty"`
	Feedback       *Feedback    `json:"feedback,omitempty"`
	IsRead         ReadFlags    `json:"isRead"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// IsParty reports whether userID is the requester or the recipient.
func (s *Swap) IsParty(userID int64) bool {
	return userID == s.RequesterID || userID == s.RecipientID
}

// Counterparty returns the party that is not userID.
func (s *Swap) Counterparty(userID int64) int64 {
	if userID == s.RequesterID {
		return s.RecipientID
	}
	return s.RequesterID
}

// DurationDays is the number of whole days, rounded up, between the
// scheduled and the completed date. Nil unless both are set.
func (s *Swap) DurationDays() *int {
	if s.ScheduledDate == nil || s.CompletedDate == nil {
		return nil
	}
	d := int(math.Ceil(s.CompletedDate.Sub(*s.ScheduledDate).Hours() / 24))
	return &d
}

type Notification struct {
	ID            int64            `json:"id"`
	RecipientID   int64            `json:"recipientId"`
	SenderID      *int64           `json:"senderId,omitempty"`
	Sender        *UserSummary     `json:"sender,omitempty"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	RelatedSwapID *int64           `json:"relatedSwapId,omitempty"`
	IsRead        bool             `json:"isRead"`
	IsDeleted     bool             `json:"isDeleted"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type UserStats struct {
	TotalUsers          int64 `json:"totalUsers"`
	VerifiedUsers       int64 `json:"verifiedUsers"`
	BannedUsers         int64 `json:"bannedUsers"`
	AdminUsers          int64 `json:"adminUsers"`
	TotalCompletedSwaps int64 `json:"totalCompletedSwaps"`
	TotalPendingSwaps   int64 `json:"totalPendingSwaps"`
}

type SwapStats struct {
	TotalSwaps     int64 `json:"totalSwaps"`
	PendingSwaps   int64 `json:"pendingSwaps"`
	AcceptedSwaps  int64 `json:"acceptedSwaps"`
	CompletedSwaps int64 `json:"completedSwaps"`
	RejectedSwaps  int64 `json:"rejectedSwaps"`
	CancelledSwaps int64 `json:"cancelledSwaps"`
}

type NotificationStats struct {
	TotalNotifications  int64 `json:"totalNotifications"`
	UnreadNotifications int64 `json:"unreadNotifications"`
	ReadNotifications   int64 `json:"readNotifications"`
}

type MonthlyCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

type SkillCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type Analytics struct {
	MonthlyGrowth    []MonthlyCount `json:"monthlyGrowth"`
	TopSkillsOffered []SkillCount   `json:"topSkillsOffered"`
	TopSkillsWanted  []SkillCount   `json:"topSkillsWanted"`
}

type PlatformStats struct {
	Users         UserStats         `json:"users"`
	Swaps         SwapStats         `json:"swaps"`
	Notifications NotificationStats `json:"notifications"`
	Analytics     Analytics         `json:"analytics"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination fills in the page count for total items.
func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// NewUser returns a user with the defaults applied at registration.
func NewUser(name, email, passwordHash string) *User {
	return &User{
		Name:                name,
		Email:               email,
		PasswordHash:        passwordHash,
		Availability:        Available,
		AvailabilityDetails: AvailabilityDetails{Weekdays: true, Weekends: true, Evenings: true},
		IsPublic:            true,
		SkillsOffered:       []SkillOffered{},
		SkillsWanted:        []SkillWanted{},
	}
}
