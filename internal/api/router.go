// Package api exposes the journal over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/api/recovery"
	"github.com/echovault/echovault/internal/api/respond"
	"github.com/echovault/echovault/internal/api/validate"
	"github.com/echovault/echovault/internal/chat"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/maintenance"
	"github.com/echovault/echovault/internal/session"
	"github.com/echovault/echovault/internal/store"
)

// HealthReporter is satisfied by health.ServiceHealthChecker.
type HealthReporter interface {
	IsHealthy() bool
	Components() map[string]bool
}

// Deps are the services the handlers call. Transcriber, Scheduler and Health may be nil.
type Deps struct {
	Sessions    *session.Registry
	Store       store.Store
	Chat        *chat.Service
	Transcriber analyzer.Transcriber
	Scheduler   *maintenance.Scheduler
	Bus         *events.Bus
	Health      HealthReporter
	Log         zerolog.Logger
	// Heartbeat is the keep-alive period of event streams.
	Heartbeat time.Duration
}

// NewRouter creates a new HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	if d.Heartbeat <= 0 {
		d.Heartbeat = 15 * time.Second
	}
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware(d.Log))
	router.Use(recovery.RequestLog(d.Log))

	entries := &EntryHandler{d: d}
	streams := &StreamHandler{d: d}
	assist := &AssistHandler{d: d}
	healthHandler := &HealthHandler{health: d.Health}

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	user := router.PathPrefix("/api/users/{userId}").Subrouter()
	user.Use(requireUserID)

	// Entry endpoints
	user.HandleFunc("/entries", entries.Submit).Methods("POST")
	user.HandleFunc("/entries", entries.List).Methods("GET")
	user.HandleFunc("/entries/stream", streams.Entries).Methods("GET")
	user.HandleFunc("/entries/{entryId}", entries.Get).Methods("GET")
	user.HandleFunc("/entries/{entryId}", entries.Edit).Methods("PATCH")

	// Suspended submissions
	user.HandleFunc("/pending/{pendingId}/gate", entries.ResolveGate).Methods("POST")
	user.HandleFunc("/pending/{pendingId}/temporal", entries.ResolveTemporal).Methods("POST")
	user.HandleFunc("/pending/{pendingId}", entries.Dismiss).Methods("DELETE")
	user.HandleFunc("/offline", entries.OfflineQueue).Methods("GET")

	// Status transitions
	user.HandleFunc("/events", streams.Events).Methods("GET")

	// Chat, voice and maintenance
	user.HandleFunc("/chat", assist.Ask).Methods("POST")
	user.HandleFunc("/transcribe", assist.Transcribe).Methods("POST")
	user.HandleFunc("/maintenance", assist.MaintenanceStatus).Methods("GET")
	user.HandleFunc("/maintenance", assist.RunMaintenance).Methods("POST")

	return router
}

func requireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validate.UserID(mux.Vars(r)["userId"]); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
