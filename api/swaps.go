package api

import (
	"net/http"
	"time"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/garnizeh/skillswap/pkg/models"
)

type SwapsHandler struct {
	swaps *swap.Service
}

func NewSwapsHandler(s *swap.Service) *SwapsHandler {
	return &SwapsHandler{swaps: s}
}

type createSwapRequest struct {
	RecipientID    int64        `json:"recipientId" validate:"required,gt=0"`
	RequestedSkill models.Skill `json:"requestedSkill"`
	OfferedSkill   models.Skill `json:"offeredSkill"`
	Message        string       `json:"message" validate:"max=1000"`
	ScheduledDate  *time.Time   `json:"scheduledDate,omitempty"`
}

type updateSwapRequest struct {
	Status   models.SwapStatus `json:"status" validate:"required"`
	Feedback *models.Feedback  `json:"feedback,omitempty"`
	UserID   *int64            `json:"userId,omitempty"`
}

// ownerBody is the optional body of calls that name the acting user.
type ownerBody struct {
	UserID *int64 `json:"userId,omitempty"`
}

type swapResponse struct {
	Swap *models.Swap `json:"swap"`
}

type swapListResponse struct {
	Swaps      []models.Swap     `json:"swaps"`
	Pagination models.Pagination `json:"pagination"`
}

// checkActingUser rejects a body userId that differs from the token's user.
func checkActingUser(callerID int64, bodyUserID *int64) error {
	if bodyUserID != nil && *bodyUserID != callerID {
		return apperr.New(apperr.Forbidden, "userId does not match the authenticated user")
	}
	return nil
}

func (h *SwapsHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())

	swaps, page, err := h.swaps.List(r.Context(), swap.ListInput{
		UserID: callerID,
		Status: models.SwapStatus(r.URL.Query().Get("status")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", swap.DefaultPageSize),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Swaps retrieved successfully", swapListResponse{Swaps: swaps, Pagination: page})
}

func (h *SwapsHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())

	var req createSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sw, err := h.swaps.Create(r.Context(), swap.CreateInput{
		RequesterID:    callerID,
		RecipientID:    req.RecipientID,
		RequestedSkill: req.RequestedSkill,
		OfferedSkill:   req.OfferedSkill,
		Message:        req.Message,
		ScheduledDate:  req.ScheduledDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, "Swap request sent successfully", swapResponse{Swap: sw})
}

func (h *SwapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sw, err := h.swaps.Get(r.Context(), id, callerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Swap retrieved successfully", swapResponse{Swap: sw})
}

func (h *SwapsHandler) Update(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkActingUser(callerID, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	sw, err := h.swaps.Transition(r.Context(), id, callerID, req.Status, req.Feedback)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Swap "+string(sw.Status)+" successfully", swapResponse{Swap: sw})
}

func (h *SwapsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(body) > 0 {
		var req ownerBody
		if err := unmarshalAndValidate(body, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := checkActingUser(callerID, req.UserID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.swaps.Delete(r.Context(), id, callerID); err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, "Swap deleted successfully", nil)
}
