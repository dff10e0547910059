package api

import (
	"net/http"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/validation"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const (
	defaultUserPageSize = 10
	maxUserPageSize     = 100
)

type UsersHandler struct {
	userRepo repository.UserRepo
	schemas  *validation.Schemas
}

func NewUsersHandler(ur repository.UserRepo, schemas *validation.Schemas) *UsersHandler {
	return &UsersHandler{userRepo: ur, schemas: schemas}
}

// profileUpdateRequest mirrors the profile_update schema. Fields outside
// it, such as email or isAdmin, are ignored.
type profileUpdateRequest struct {
	Name                *string                     `json:"name"`
	Location            *string                     `json:"location"`
	Bio                 *string                     `json:"bio"`
	ProfilePhoto        *string                     `json:"profilePhoto"`
	SkillsOffered       *[]models.SkillOffered      `json:"skillsOffered"`
	SkillsWanted        *[]models.SkillWanted       `json:"skillsWanted"`
	Availability        *models.Availability        `json:"availability"`
	AvailabilityDetails *models.AvailabilityDetails `json:"availabilityDetails"`
	IsPublic            *bool                       `json:"isPublic"`
}

type userListResponse struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

// pageParams reads page and limit with the given defaults.
func pageParams(r *http.Request, defLimit, maxLimit int) (page, limit int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(r, "limit", defLimit)
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// List returns public, non-banned profiles, most recently active first.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(r, defaultUserPageSize, maxUserPageSize)

	users, total, err := h.userRepo.ListUsers(r.Context(), repository.UserFilter{
		Search:       q.Get("search"),
		Availability: models.Availability(q.Get("availability")),
		SkillLevel:   models.SkillLevel(q.Get("skillLevel")),
		Location:     q.Get("location"),
		PublicOnly:   true,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	})
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "list users", err))
		return
	}

	for i := range users {
		users[i] = users[i].Public()
	}
	writeOK(w, http.StatusOK, "Users retrieved successfully", userListResponse{
		Users:      users,
		Pagination: models.NewPagination(page, limit, total),
	})
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	callerID, _ := UserIDFrom(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), callerID)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "load user", err))
		return
	}
	if user == nil {
		writeError(w, r, apperr.New(apperr.NotFound, "User not found"))
		return
	}

	writeOK(w, http.StatusOK, "User retrieved successfully", user)
}

// Get serves a profile. Private profiles are only visible to their owner
// and admins; others get the public view.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "load user", err))
		return
	}
	if user == nil {
		writeError(w, r, apperr.New(apperr.NotFound, "User not found"))
		return
	}

	callerID, _ := UserIDFrom(r.Context())
	privileged := callerID == user.ID || isAdmin(r.Context())
	if !user.IsPublic && !privileged {
		writeError(w, r, apperr.New(apperr.Forbidden, "This profile is private"))
		return
	}
	if !privileged {
		*user = user.Public()
	}

	writeOK(w, http.StatusOK, "User retrieved successfully", user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	callerID, _ := UserIDFrom(r.Context())
	if callerID != id && !isAdmin(r.Context()) {
		writeError(w, r, apperr.New(apperr.Forbidden, "Not authorized to update this user"))
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.schemas.ValidateDocument(r.Context(), validation.ProfileUpdateSchema, body); err != nil {
		writeError(w, r, err)
		return
	}
	var req profileUpdateRequest
	if err := unmarshalAndValidate(body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	existing, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "load user", err))
		return
	}
	if existing == nil {
		writeError(w, r, apperr.New(apperr.NotFound, "User not found"))
		return
	}

	if err := h.userRepo.UpdateProfile(r.Context(), id, repository.ProfileUpdate{
		Name:                req.Name,
		Location:            req.Location,
		Bio:                 req.Bio,
		ProfilePhoto:        req.ProfilePhoto,
		SkillsOffered:       req.SkillsOffered,
		SkillsWanted:        req.SkillsWanted,
		Availability:        req.Availability,
		AvailabilityDetails: req.AvailabilityDetails,
		IsPublic:            req.IsPublic,
	}); err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "update user", err))
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "reload user", err))
		return
	}

	writeOK(w, http.StatusOK, "User updated successfully", user)
}
