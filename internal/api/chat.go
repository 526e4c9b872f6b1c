package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/ashureev/career-compass/internal/session"
	"github.com/go-chi/chi/v5"
)

// chatHistoryLimit bounds the history returned to the frontend.
const chatHistoryLimit = 50

// ChatHandler handles conversational endpoints.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/message", h.Message)
		r.Get("/history/{userID}", h.History)
		r.Get("/roadmap/{userID}", h.Roadmap)
		r.Post("/load-context/{userID}", h.LoadContext)
	})
}

type messageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Message runs one chat turn through the reconciliation protocol.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	result, err := h.reconciler.Converse(r.Context(), req.UserID, req.Message)
	if err != nil {
		slog.Error("Chat turn failed", "user_id", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"response":        result.Reply,
		"context_used":    result.ContextUsed,
		"roadmap_updated": result.RoadmapUpdated,
	})
}

// History returns recent chat messages in chronological order.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	messages, err := h.repo.GetChatHistory(r.Context(), userID, chatHistoryLimit)
	if err != nil {
		slog.Error("Failed to fetch chat history", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// Roadmap returns the live roadmap from the session when one exists (it may
// include chat modifications not yet visible elsewhere), falling back to the
// latest stored roadmap, which is then loaded into the session.
func (h *ChatHandler) Roadmap(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roadmap, goal := h.sessions.ReadRoadmap(userID)
	if !roadmap.IsEmpty() {
		if goal == "" {
			goal = session.DefaultRoadmapGoal
		}
		JSON(w, http.StatusOK, map[string]interface{}{
			"roadmap": roadmap,
			"goal":    goal,
			"source":  "session",
		})
		return
	}

	record, err := h.repo.GetLatestRoadmap(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to fetch latest roadmap", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record != nil {
		h.sessions.SetRoadmap(userID, record.Roadmap, record.Title)
		JSON(w, http.StatusOK, map[string]interface{}{
			"roadmap":         record.Roadmap,
			"goal":            record.Title,
			"source":          "database",
			"id":              record.ID,
			"progress":        record.Progress,
			"completed_weeks": record.CompletedWeeks,
		})
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"roadmap": domain.Roadmap{},
		"goal":    "",
		"source":  "none",
	})
}

// LoadContext explicitly hydrates the user's session from durable records.
func (h *ChatHandler) LoadContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	resumeCtx, err := h.repo.GetLatestResumeContent(ctx, userID)
	if err != nil {
		slog.Error("Failed to load resume context", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	record, err := h.repo.GetLatestRoadmap(ctx, userID)
	if err != nil {
		slog.Error("Failed to load roadmap context", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if resumeCtx == nil && record == nil {
		JSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "No context found for user",
		})
		return
	}

	ws := domain.EmptyWorkingSet()
	if resumeCtx != nil {
		ws.ResumeText = resumeCtx.ResumeContent
		ws.TargetRole = resumeCtx.TargetRole
		ws.Sector = h.engine.ClassifySector(resumeCtx.ResumeContent, resumeCtx.TargetRole)
	} else {
		ws.TargetRole = record.Title
	}
	if record != nil {
		ws.Roadmap = record.Roadmap
		ws.RoadmapGoal = record.Title
	}
	h.sessions.Initialize(userID, ws)

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"loaded": map[string]bool{
			"resume":  resumeCtx != nil,
			"roadmap": record != nil,
		},
	})
}
