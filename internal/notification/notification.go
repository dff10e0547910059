package notification

import (
	"context"
	"log/slog"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service exposes a user's notification feed. Notifications are created by
// the swap engine inside its transactions; this side only reads and flags.
type Service struct {
	repo   repository.NotificationRepo
	logger *slog.Logger
}

func NewService(repo repository.NotificationRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

type ListInput struct {
	UserID     int64
	Page       int
	Limit      int
	UnreadOnly bool
}

// Page is one page of a feed plus the caller's unread total.
type Page struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
	Pagination    models.Pagination     `json:"pagination"`
}

func (s *Service) List(ctx context.Context, in ListInput) (*Page, error) {
	page, limit := in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	items, total, err := s.repo.ListNotifications(ctx, repository.NotificationFilter{
		RecipientID: in.UserID,
		UnreadOnly:  in.UnreadOnly,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list notifications", err)
	}
	unread, err := s.repo.CountUnread(ctx, in.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count unread notifications", err)
	}

	return &Page{
		Notifications: items,
		UnreadCount:   unread,
		Pagination:    models.NewPagination(page, limit, total),
	}, nil
}

// Selection picks notifications by id, or every notification of the caller
// when All is set.
type Selection struct {
	IDs []int64
	All bool
}

func (sel Selection) empty() bool {
	return !sel.All && len(sel.IDs) == 0
}

// MarkRead flags the selected unread notifications as read and returns how
// many changed.
func (s *Service) MarkRead(ctx context.Context, userID int64, sel Selection) (int64, error) {
	if sel.empty() {
		return 0, apperr.New(apperr.InvalidRequest, "Either notificationIds or markAll must be provided")
	}
	n, err := s.repo.MarkRead(ctx, userID, sel.IDs, sel.All)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "mark notifications read", err)
	}
	s.logger.Debug("notifications marked read", "user_id", userID, "count", n)
	return n, nil
}

// SoftDelete hides the selected notifications from the feed.
func (s *Service) SoftDelete(ctx context.Context, userID int64, sel Selection) (int64, error) {
	if sel.empty() {
		return 0, apperr.New(apperr.InvalidRequest, "Either notificationIds or deleteAll must be provided")
	}
	n, err := s.repo.SoftDelete(ctx, userID, sel.IDs, sel.All)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "delete notifications", err)
	}
	s.logger.Debug("notifications deleted", "user_id", userID, "count", n)
	return n, nil
}
