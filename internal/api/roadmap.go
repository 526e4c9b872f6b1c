package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RoadmapHandler handles roadmap generation and progress endpoints.
type RoadmapHandler struct {
	*Handler
}

// NewRoadmapHandler creates a new roadmap handler.
func NewRoadmapHandler(base *Handler) *RoadmapHandler {
	return &RoadmapHandler{Handler: base}
}

// RegisterRoutes registers roadmap routes.
func (h *RoadmapHandler) RegisterRoutes(r chi.Router) {
	r.Route("/roadmap", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/user/{userID}", h.List)
		r.Get("/latest/{userID}", h.Latest)
		r.Put("/progress", h.UpdateProgress)
	})
}

type generateRequest struct {
	Skills []string `json:"skills"`
	Goal   string   `json:"goal"`
	UserID string   `json:"user_id"`
}

// Generate produces a new learning roadmap from explicit skills and a goal,
// stores it in the session, and persists it.
func (h *RoadmapHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Goal) == "" || strings.TrimSpace(req.UserID) == "" {
		Error(w, http.StatusBadRequest, "goal and user_id are required")
		return
	}

	ctx := r.Context()
	roadmap, err := h.engine.GenerateRoadmap(ctx, req.Skills, req.Goal)
	if err != nil {
		slog.Error("Roadmap generation failed", "user_id", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sessions.SetRoadmap(req.UserID, roadmap, req.Goal)

	if _, err := h.repo.InsertRoadmap(ctx, req.UserID, req.Goal, roadmap); err != nil {
		slog.Warn("failed to persist generated roadmap", "user_id", req.UserID, "error", err)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"roadmap": roadmap})
}

// List returns all roadmaps for a user, newest first.
func (h *RoadmapHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roadmaps, err := h.repo.GetRoadmaps(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to fetch roadmaps", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if roadmaps == nil {
		roadmaps = []*domain.RoadmapRecord{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"roadmaps": roadmaps})
}

// Latest returns the user's most recent roadmap and loads it into the session
// so subsequent chat turns see it.
func (h *RoadmapHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roadmap, err := h.repo.GetLatestRoadmap(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to fetch latest roadmap", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if roadmap != nil {
		h.sessions.SetRoadmap(userID, roadmap.Roadmap, roadmap.Title)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"roadmap": roadmap})
}

type progressRequest struct {
	RoadmapID      string `json:"roadmap_id"`
	Progress       int    `json:"progress"`
	CompletedWeeks []int  `json:"completed_weeks"`
}

// UpdateProgress updates the progress fields of a stored roadmap. The
// in-memory session is deliberately untouched: progress and roadmap content
// are tracked as independent axes.
func (h *RoadmapHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RoadmapID) == "" {
		Error(w, http.StatusBadRequest, "roadmap_id is required")
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		Error(w, http.StatusBadRequest, "progress must be between 0 and 100")
		return
	}

	updated, err := h.repo.UpdateRoadmapProgress(r.Context(), req.RoadmapID, req.Progress, req.CompletedWeeks)
	if err != nil {
		slog.Error("Failed to update roadmap progress", "roadmap_id", req.RoadmapID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated == nil {
		Error(w, http.StatusNotFound, "Roadmap not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Progress updated",
	})
}
