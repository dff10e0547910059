package api

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/auth"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

type AuthHandler struct {
	userRepo   repository.UserRepo
	tokens     *auth.TokenIssuer
	bcryptCost int
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(ur repository.UserRepo, tokens *auth.TokenIssuer, bcryptCost int) *AuthHandler {
	return &AuthHandler{userRepo: ur, tokens: tokens, bcryptCost: bcryptCost}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.userRepo.GetByEmail(ctx, email)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}
	if existing != nil {
		writeError(w, r, apperr.New(apperr.InvalidRequest, "User already exists with this email"))
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "hash password", err))
		return
	}

	id, err := h.userRepo.CreateUser(ctx, models.NewUser(strings.TrimSpace(req.Name), email, hash))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "create user", err))
		return
	}
	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil || user == nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "load created user", err))
		return
	}

	token, err := h.tokens.Issue(id)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "issue token", err))
		return
	}

	logger.Info("user registered", slog.Int64("user_id", id))
	writeOK(w, http.StatusCreated, "User registered successfully", authResponse{User: *user, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()

	user, err := h.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, r, apperr.New(apperr.Unauthenticated, "Invalid credentials"))
		return
	}
	if user.IsBanned {
		writeError(w, r, apperr.New(apperr.Forbidden, "Account has been banned"))
		return
	}

	if err := h.userRepo.TouchLastActive(ctx, user.ID); err != nil {
		logger.Warn("failed to update last active", slog.Int64("user_id", user.ID), slog.Any("err", err))
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "issue token", err))
		return
	}

	writeOK(w, http.StatusOK, "Login successful", authResponse{User: *user, Token: token})
}

// Signout is client side for stateless tokens; the endpoint only confirms.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}
