package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/go-chi/chi/v5"
)

// maxUploadSize bounds resume uploads (10MB).
const maxUploadSize = 10 << 20

// ResumeHandler handles resume analysis endpoints.
type ResumeHandler struct {
	*Handler
}

// NewResumeHandler creates a new resume handler.
func NewResumeHandler(base *Handler) *ResumeHandler {
	return &ResumeHandler{Handler: base}
}

// RegisterRoutes registers resume routes.
func (h *ResumeHandler) RegisterRoutes(r chi.Router) {
	r.Route("/resume", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Get("/history/{userID}", h.History)
		r.Get("/detail/{resumeID}", h.Detail)
	})
}

// Analyze accepts a PDF resume and target role, runs the AI analysis, and
// persists the resulting resume record plus the auto-generated roadmap.
func (h *ResumeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	targetRole := strings.TrimSpace(r.FormValue("target_role"))
	userID := strings.TrimSpace(r.FormValue("user_id"))
	if targetRole == "" || userID == "" {
		Error(w, http.StatusBadRequest, "target_role and user_id are required")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		Error(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	tmp, err := os.CreateTemp("", "resume-*.pdf")
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tmpPath := tmp.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			slog.Warn("failed to remove temp resume file", "path", tmpPath, "error", removeErr)
		}
	}()
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := tmp.Close(); err != nil {
		Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	ctx := r.Context()
	analysis, err := h.engine.AnalyzeResume(ctx, tmpPath, targetRole, userID)
	if err != nil {
		slog.Error("Resume analysis failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Full replacement of the working set: this is the initializing write.
	h.sessions.Initialize(userID, &domain.WorkingSet{
		ResumeText:  analysis.ResumeContent,
		TargetRole:  targetRole,
		Sector:      analysis.Sector,
		SkillsHave:  analysis.SkillsYouHave,
		SkillsNeed:  analysis.SkillsYouNeed,
		Roadmap:     analysis.Roadmap,
		RoadmapGoal: targetRole,
	})

	// Durable writes are best-effort: the analysis result is still returned
	// when persistence fails.
	record := domain.ResumeAnalysis{
		ATSScore:      analysis.ATSScore,
		SkillsYouHave: analysis.SkillsYouHave,
		SkillsYouNeed: analysis.SkillsYouNeed,
	}
	if _, err := h.repo.InsertResume(ctx, userID, targetRole, record, analysis.ResumeContent, analysis.ATSScore); err != nil {
		slog.Warn("failed to persist resume analysis", "user_id", userID, "error", err)
	}
	if !analysis.Roadmap.IsEmpty() {
		if _, err := h.repo.InsertRoadmap(ctx, userID, targetRole, analysis.Roadmap); err != nil {
			slog.Warn("failed to persist generated roadmap", "user_id", userID, "error", err)
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"ats_score":         analysis.ATSScore,
		"skills_you_have":   analysis.SkillsYouHave,
		"skills_you_need":   analysis.SkillsYouNeed,
		"roadmap_generated": !analysis.Roadmap.IsEmpty(),
	})
}

// History returns all resume analyses for a user, newest first.
func (h *ResumeHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	history, err := h.repo.GetResumeHistory(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to fetch resume history", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []*domain.ResumeRecord{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// Detail returns a single resume analysis by ID.
func (h *ResumeHandler) Detail(w http.ResponseWriter, r *http.Request) {
	resumeID := chi.URLParam(r, "resumeID")

	resume, err := h.repo.GetResumeByID(r.Context(), resumeID)
	if err != nil {
		slog.Error("Failed to fetch resume detail", "resume_id", resumeID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resume == nil {
		Error(w, http.StatusNotFound, "Resume not found")
		return
	}

	JSON(w, http.StatusOK, resume)
}
