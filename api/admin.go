package api

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const (
	defaultAdminPageSize = 20
	defaultBanReason     = "Violation of platform policies"
	topSkillsLimit       = 10
)

type AdminHandler struct {
	userRepo  repository.UserRepo
	statsRepo repository.StatsRepo
	now       func() time.Time
}

func NewAdminHandler(ur repository.UserRepo, sr repository.StatsRepo) *AdminHandler {
	return &AdminHandler{userRepo: ur, statsRepo: sr, now: time.Now}
}

type adminUpdateRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Action string `json:"action" validate:"required,oneof=ban unban verify unverify"`
	Reason string `json:"reason" validate:"max=500"`
}

type adminUserListResponse struct {
	Users      []models.User     `json:"users"`
	Stats      models.UserStats  `json:"stats"`
	Pagination models.Pagination `json:"pagination"`
}

var actionMessages = map[string]string{
	"ban":      "User banned successfully",
	"unban":    "User unbanned successfully",
	"verify":   "User verified successfully",
	"unverify": "User unverified successfully",
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(r, defaultAdminPageSize, maxUserPageSize)

	status := q.Get("status")
	if status != "" && status != "banned" && status != "active" {
		writeError(w, r, apperr.New(apperr.InvalidRequest, "status must be banned or active"))
		return
	}

	users, total, err := h.userRepo.ListUsers(r.Context(), repository.UserFilter{
		Search: q.Get("search"),
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "list users", err))
		return
	}
	stats, err := h.statsRepo.UserStats(r.Context(), time.Time{})
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "user stats", err))
		return
	}

	writeOK(w, http.StatusOK, "Users retrieved successfully", adminUserListResponse{
		Users:      users,
		Stats:      stats,
		Pagination: models.NewPagination(page, limit, total),
	})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	user, err := h.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "load user", err))
		return
	}
	if user == nil {
		writeError(w, r, apperr.New(apperr.NotFound, "User not found"))
		return
	}

	switch req.Action {
	case "ban":
		reason := req.Reason
		if reason == "" {
			reason = defaultBanReason
		}
		err = h.userRepo.SetBanned(ctx, user.ID, true, reason)
	case "unban":
		err = h.userRepo.SetBanned(ctx, user.ID, false, "")
	case "verify":
		err = h.userRepo.SetVerified(ctx, user.ID, true)
	case "unverify":
		err = h.userRepo.SetVerified(ctx, user.ID, false)
	}
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "update user", err))
		return
	}

	adminID, _ := UserIDFrom(ctx)
	logger.Info("admin action", slog.Int64("admin_id", adminID), slog.Int64("user_id", user.ID), slog.String("action", req.Action))

	updated, err := h.userRepo.GetByID(ctx, user.ID)
	if err != nil || updated == nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "reload user", err))
		return
	}

	writeOK(w, http.StatusOK, actionMessages[req.Action], updated)
}

// periodStart converts the period query value into the lower bound of the
// created timestamps; "all" and "" return the zero time.
func periodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "", "all":
		return time.Time{}, nil
	case "week":
		return now.Add(-7 * 24 * time.Hour), nil
	case "month":
		return now.Add(-30 * 24 * time.Hour), nil
	case "year":
		return now.Add(-365 * 24 * time.Hour), nil
	}
	return time.Time{}, apperr.New(apperr.InvalidRequest, "period must be one of all, week, month, year")
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	since, err := periodStart(r.URL.Query().Get("period"), now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var stats models.PlatformStats
	if stats.Users, err = h.statsRepo.UserStats(ctx, since); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "user stats", err))
		return
	}
	if stats.Swaps, err = h.statsRepo.SwapStats(ctx, since); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "swap stats", err))
		return
	}
	if stats.Notifications, err = h.statsRepo.NotificationStats(ctx, since); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "notification stats", err))
		return
	}
	if stats.Analytics.MonthlyGrowth, err = h.statsRepo.MonthlyUserGrowth(ctx, now.Add(-12*30*24*time.Hour)); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "monthly growth", err))
		return
	}
	if stats.Analytics.TopSkillsOffered, err = h.statsRepo.TopSkills(ctx, false, topSkillsLimit); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "top skills offered", err))
		return
	}
	if stats.Analytics.TopSkillsWanted, err = h.statsRepo.TopSkills(ctx, true, topSkillsLimit); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "top skills wanted", err))
		return
	}

	writeOK(w, http.StatusOK, "Statistics retrieved successfully", stats)
}
