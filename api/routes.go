package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/garnizeh/skillswap/internal/auth"
	"github.com/garnizeh/skillswap/internal/config"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/garnizeh/skillswap/internal/notification"
	"github.com/garnizeh/skillswap/internal/repository/sqlite"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/garnizeh/skillswap/internal/validation"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Preflight for every path; CORSMiddleware answers it.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Repository and services
	repo := sqlite.New(db, logger.With(slog.String("component", "repository")))
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenDuration)
	schemas, err := validation.DefaultSchemas()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	swaps := swap.NewService(repo, logger.With(slog.String("component", "swap")))
	notifications := notification.NewService(repo, logger.With(slog.String("component", "notification")))

	// Create handlers
	systemHandler := NewSystemHandler(db.GetConn())
	authHandler := NewAuthHandler(repo, tokens, cfg.BcryptCost)
	usersHandler := NewUsersHandler(repo, schemas)
	swapsHandler := NewSwapsHandler(swaps)
	notificationsHandler := NewNotificationsHandler(notifications)
	adminHandler := NewAdminHandler(repo, repo)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	limit := RateLimitByIP(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	r.Handle("/v1/auth/register", limit(http.HandlerFunc(authHandler.Register))).Methods("POST")
	r.Handle("/v1/auth/login", limit(http.HandlerFunc(authHandler.Login))).Methods("POST")

	optionalAuth := OptionalAuthMiddleware(tokens, repo)
	r.Handle("/v1/users", optionalAuth(http.HandlerFunc(usersHandler.List))).Methods("GET")
	r.Handle("/v1/users/{id:[0-9]+}", optionalAuth(http.HandlerFunc(usersHandler.Get))).Methods("GET")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(AuthMiddleware(tokens, repo))

	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods("POST")

	apiV1.HandleFunc("/users/me", usersHandler.Me).Methods("GET")
	apiV1.HandleFunc("/users/{id:[0-9]+}", usersHandler.Update).Methods("PUT")

	apiV1.HandleFunc("/swaps", swapsHandler.List).Methods("GET")
	apiV1.HandleFunc("/swaps", swapsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/swaps/{id:[0-9]+}", swapsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/swaps/{id:[0-9]+}", swapsHandler.Update).Methods("PATCH")
	apiV1.HandleFunc("/swaps/{id:[0-9]+}", swapsHandler.Delete).Methods("DELETE")

	apiV1.HandleFunc("/notifications", notificationsHandler.List).Methods("GET")
	apiV1.HandleFunc("/notifications", notificationsHandler.MarkRead).Methods("PUT")
	apiV1.HandleFunc("/notifications", notificationsHandler.Delete).Methods("DELETE")

	// Admin endpoints
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(RequireAdmin)
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/users", adminHandler.UpdateUser).Methods("PUT")
	admin.HandleFunc("/stats", adminHandler.Stats).Methods("GET")

	return r, nil
}
