// Package api exposes the study engine as a JSON HTTP API.
package api

import (
	"context"
	"net/http"

	"github.com/rs/cors"

	"github.com/p-n-ai/reviserx/internal/engine"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the handler dependencies.
type Config struct {
	Engine *engine.Engine
	// WebSocket serves GET /api/v1/chat/ws; nil leaves the route unregistered.
	WebSocket   http.Handler
	CORSOrigins []string
	// Checks are run by /readyz, keyed by component name.
	Checks map[string]HealthCheck
}

// NewHandler returns the API mux wrapped with CORS handling.
func NewHandler(cfg Config) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	})
	return c.Handler(NewMux(cfg))
}

// NewMux registers every route on a new ServeMux.
func NewMux(cfg Config) *http.ServeMux {
	h := &Handler{engine: cfg.Engine, checks: cfg.Checks}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	mux.HandleFunc("GET /api/v1/categories", h.Categories)
	mux.HandleFunc("GET /api/v1/state", h.State)
	mux.HandleFunc("PUT /api/v1/selection", h.UpdateSelection)

	mux.HandleFunc("GET /api/v1/topics", h.Topics)
	mux.HandleFunc("GET /api/v1/topics/{id}", h.Topic)
	mux.HandleFunc("GET /api/v1/questions", h.Questions)

	mux.HandleFunc("GET /api/v1/glossary", h.Glossary)
	mux.HandleFunc("GET /api/v1/glossary/{term}", h.GlossaryTerm)

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("PUT /api/v1/search", h.SetSearch)

	mux.HandleFunc("GET /api/v1/chat/messages", h.ChatHistory)
	mux.HandleFunc("POST /api/v1/chat/messages", h.SendMessage)
	mux.HandleFunc("GET /api/v1/chat/suggestions", h.Suggestions)
	if cfg.WebSocket != nil {
		mux.Handle("GET /api/v1/chat/ws", cfg.WebSocket)
	}

	mux.HandleFunc("POST /api/v1/sessions", h.StartSession)
	mux.HandleFunc("GET /api/v1/sessions", h.Sessions)
	mux.HandleFunc("GET /api/v1/sessions/current", h.CurrentSession)
	mux.HandleFunc("POST /api/v1/sessions/current/end", h.EndSession)

	mux.HandleFunc("GET /api/v1/progress", h.Progress)
	mux.HandleFunc("GET /api/v1/progress/export", h.ExportProgress)

	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
