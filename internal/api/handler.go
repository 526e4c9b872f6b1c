// Package api provides HTTP handlers for the Career Compass API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/career-compass/internal/ai"
	"github.com/ashureev/career-compass/internal/session"
	"github.com/ashureev/career-compass/internal/store"
)

// Handler provides common handler dependencies.
type Handler struct {
	repo       store.Repository
	engine     ai.Engine
	sessions   *session.Store
	reconciler *session.Reconciler
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, engine ai.Engine, sessions *session.Store, reconciler *session.Reconciler) *Handler {
	return &Handler{
		repo:       repo,
		engine:     engine,
		sessions:   sessions,
		reconciler: reconciler,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
