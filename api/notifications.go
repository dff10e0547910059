package api

import (
	"net/http"
	"strconv"

	"github.com/garnizeh/skillswap/internal/notification"
)

type NotificationsHandler struct {
	notifications *notification.Service
}

func NewNotificationsHandler(s *notification.Service) *NotificationsHandler {
	return &NotificationsHandler{notifications: s}
}

type markReadRequest struct {
	UserID          *int64  `json:"userId,omitempty"`
	NotificationIDs []int64 `json:"notificationIds" validate:"omitempty,max=1000,dive,gt=0"`
	MarkAll         bool    `json:"markAll"`
}

type deleteNotificationsRequest struct {
	UserID          *int64  `json:"userId,omitempty"`
	NotificationIDs []int64 `json:"notificationIds" validate:"omitempty,max=1000,dive,gt=0"`
	DeleteAll       bool    `json:"deleteAll"`
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unreadOnly"))

	page, err := h.notifications.List(r.Context(), notification.ListInput{
		UserID:     callerID,
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", notification.DefaultPageSize),
		UnreadOnly: unreadOnly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Notifications retrieved successfully", page)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())

	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkActingUser(callerID, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), callerID, notification.Selection{IDs: req.NotificationIDs, All: req.MarkAll})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Notifications marked as read", map[string]int64{"updatedCount": n})
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())

	var req deleteNotificationsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkActingUser(callerID, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.notifications.SoftDelete(r.Context(), callerID, notification.Selection{IDs: req.NotificationIDs, All: req.DeleteAll})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Notifications deleted successfully", map[string]int64{"deletedCount": n})
}
