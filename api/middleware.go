package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/auth"
	"github.com/garnizeh/skillswap/internal/metrics"
	"github.com/garnizeh/skillswap/pkg/repository"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const (
	CtxUserID    ctxKey = "user_id"
	ctxIsAdmin   ctxKey = "is_admin"
	ctxRequestID ctxKey = "request_id"
)

// package-level logger used by middleware and helpers; can be set via SetLogger from caller
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the api package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// UserIDFrom returns the authenticated user id stored by AuthMiddleware.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CtxUserID).(int64)
	return id, ok && id > 0
}

func isAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(ctxIsAdmin).(bool)
	return v
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// statusRecorder remembers the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware propagates X-Request-ID or assigns a new one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordAPIRequest(r.Method, route, rec.status, time.Since(start))
	})
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic", slog.Any("err", err), slog.String("path", r.URL.Path))
				writeError(w, r, apperr.New(apperr.Internal, "panic"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RateLimitByIP limits open endpoints to requests per window for each
// client IP. A non-positive requests disables the limit.
func RateLimitByIP(requests int, window time.Duration) mux.MiddlewareFunc {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(requests, window)
}

// AuthMiddleware resolves the bearer token to an active user. Banned users
// are refused with 403.
func AuthMiddleware(tokens *auth.TokenIssuer, users repository.UserRepo) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, r, apperr.New(apperr.Unauthenticated, "Access denied. No token provided."))
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			tokenString = strings.TrimSpace(tokenString)
			if !ok || tokenString == "" {
				writeError(w, r, apperr.New(apperr.Unauthenticated, "Invalid Authorization header"))
				return
			}

			userID, err := tokens.Parse(tokenString)
			if err != nil {
				writeError(w, r, apperr.New(apperr.Unauthenticated, "Invalid or expired token"))
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				writeError(w, r, apperr.Wrap(apperr.Internal, "load user", err))
				return
			}
			if user == nil {
				writeError(w, r, apperr.New(apperr.Unauthenticated, "Invalid token. User not found."))
				return
			}
			if user.IsBanned {
				writeError(w, r, apperr.New(apperr.Forbidden, "Account has been banned"))
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, user.ID)
			ctx = context.WithValue(ctx, ctxIsAdmin, user.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the caller to the context when a valid
// token is present and otherwise lets the request through anonymously.
func OptionalAuthMiddleware(tokens *auth.TokenIssuer, users repository.UserRepo) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := tokens.Parse(strings.TrimSpace(tokenString))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.GetByID(r.Context(), userID)
			if err != nil || user == nil || user.IsBanned {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, user.ID)
			ctx = context.WithValue(ctx, ctxIsAdmin, user.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r.Context()) {
			writeError(w, r, apperr.New(apperr.Forbidden, "Access denied. Admin privileges required."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
