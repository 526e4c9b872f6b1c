package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/career-compass/internal/ai"
	"github.com/ashureev/career-compass/internal/domain"
	"github.com/ashureev/career-compass/internal/session"
	"github.com/go-chi/chi/v5"
)

type fakeRepo struct {
	mu sync.Mutex

	resume        *domain.ResumeContext
	resumeByID    map[string]*domain.ResumeRecord
	latestRoadmap *domain.RoadmapRecord

	insertResumeCalls  int
	insertRoadmapCalls int
	progressCalls      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{resumeByID: make(map[string]*domain.ResumeRecord)}
}

func (f *fakeRepo) InsertResume(_ context.Context, userID, targetRole string, analysis domain.ResumeAnalysis, resumeContent string, atsScore int) (*domain.ResumeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertResumeCalls++
	return &domain.ResumeRecord{ID: "r1", UserID: userID, TargetRole: targetRole, Analysis: analysis, ResumeContent: resumeContent, ATSScore: atsScore}, nil
}

func (f *fakeRepo) GetResumeHistory(_ context.Context, _ string) ([]*domain.ResumeRecord, error) {
	return nil, nil
}

func (f *fakeRepo) GetResumeByID(_ context.Context, id string) (*domain.ResumeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumeByID[id], nil
}

func (f *fakeRepo) GetLatestResumeContent(_ context.Context, _ string) (*domain.ResumeContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resume, nil
}

func (f *fakeRepo) InsertRoadmap(_ context.Context, userID, title string, roadmap domain.Roadmap) (*domain.RoadmapRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertRoadmapCalls++
	return &domain.RoadmapRecord{ID: "rm1", UserID: userID, Title: title, Roadmap: roadmap, CompletedWeeks: []int{}}, nil
}

func (f *fakeRepo) GetRoadmaps(_ context.Context, _ string) ([]*domain.RoadmapRecord, error) {
	return nil, nil
}

func (f *fakeRepo) GetLatestRoadmap(_ context.Context, _ string) (*domain.RoadmapRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestRoadmap, nil
}

func (f *fakeRepo) UpdateRoadmapProgress(_ context.Context, roadmapID string, progress int, completedWeeks []int) (*domain.RoadmapRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressCalls++
	if roadmapID != "known" {
		return nil, nil
	}
	return &domain.RoadmapRecord{ID: roadmapID, Progress: progress, CompletedWeeks: completedWeeks}, nil
}

func (f *fakeRepo) InsertChatMessage(_ context.Context, userID, role, content string) (*domain.ChatMessage, error) {
	return &domain.ChatMessage{UserID: userID, Role: role, Content: content}, nil
}

func (f *fakeRepo) GetChatHistory(_ context.Context, _ string, _ int) ([]*domain.ChatMessage, error) {
	return nil, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

type fakeEngine struct {
	analysis *ai.Analysis
	roadmap  domain.Roadmap
	reply    string
	patch    *ai.RoadmapPatch

	analyzeCalls int
}

func (f *fakeEngine) AnalyzeResume(_ context.Context, _, _, _ string) (*ai.Analysis, error) {
	f.analyzeCalls++
	if f.analysis == nil {
		return nil, errors.New("analysis failed")
	}
	return f.analysis, nil
}

func (f *fakeEngine) GenerateRoadmap(_ context.Context, _ []string, _ string) (domain.Roadmap, error) {
	if f.roadmap == nil {
		return nil, errors.New("generation failed")
	}
	return f.roadmap, nil
}

func (f *fakeEngine) ChatWithContext(_ context.Context, _ ai.ChatContext) (*ai.ChatResult, error) {
	return &ai.ChatResult{Reply: f.reply, Patch: f.patch}, nil
}

func (f *fakeEngine) ClassifySector(resumeText, _ string) string {
	if resumeText == "" {
		return domain.SectorGeneral
	}
	return "technology"
}

func newTestRouter(repo *fakeRepo, engine *fakeEngine) (chi.Router, *session.Store) {
	sessions := session.NewStore(repo, engine)
	reconciler := session.NewReconciler(sessions, repo, engine, time.Second, 10)
	base := NewHandler(repo, engine, sessions, reconciler)

	r := chi.NewRouter()
	NewResumeHandler(base).RegisterRoutes(r)
	NewRoadmapHandler(base).RegisterRoutes(r)
	NewChatHandler(base).RegisterRoutes(r)
	return r, sessions
}

func multipartResume(t *testing.T, filename, targetRole, userID string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 fake content")); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := writer.WriteField("target_role", targetRole); err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	if err := writer.WriteField("user_id", userID); err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestAnalyze_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	engine := &fakeEngine{
		analysis: &ai.Analysis{
			ATSScore:      80,
			SkillsYouHave: []string{"go"},
			SkillsYouNeed: []string{"kubernetes"},
			ResumeContent: "resume text",
			Roadmap:       domain.Roadmap{"week_1": "learn kubernetes"},
			Sector:        "technology",
		},
	}
	router, sessions := newTestRouter(repo, engine)

	body, contentType := multipartResume(t, "resume.pdf", "Backend Engineer", "user1")
	req := httptest.NewRequest(http.MethodPost, "/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["roadmap_generated"] != true {
		t.Errorf("Expected roadmap_generated=true, got %v", resp["roadmap_generated"])
	}
	if resp["ats_score"] != float64(80) {
		t.Errorf("Expected ats_score=80, got %v", resp["ats_score"])
	}

	if repo.insertResumeCalls != 1 {
		t.Errorf("Expected InsertResume called once, got %d", repo.insertResumeCalls)
	}
	if repo.insertRoadmapCalls != 1 {
		t.Errorf("Expected InsertRoadmap called once, got %d", repo.insertRoadmapCalls)
	}

	// The session was initialized with the analysis result.
	roadmap, goal := sessions.ReadRoadmap("user1")
	if roadmap.IsEmpty() || goal != "Backend Engineer" {
		t.Errorf("Expected session initialized from analysis, got %s %q", roadmap.Canonical(), goal)
	}
}

func TestAnalyze_RejectsNonPDF(t *testing.T) {
	repo := newFakeRepo()
	engine := &fakeEngine{}
	router, _ := newTestRouter(repo, engine)

	body, contentType := multipartResume(t, "resume.docx", "Backend Engineer", "user1")
	req := httptest.NewRequest(http.MethodPost, "/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if engine.analyzeCalls != 0 {
		t.Errorf("Expected rejection before any side effect, engine called %d times", engine.analyzeCalls)
	}
	if repo.insertResumeCalls != 0 {
		t.Errorf("Expected no durable writes, got %d", repo.insertResumeCalls)
	}
}

func TestAnalyze_MissingFields(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo(), &fakeEngine{})

	body, contentType := multipartResume(t, "resume.pdf", "", "user1")
	req := httptest.NewRequest(http.MethodPost, "/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestResumeDetail_NotFound(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo(), &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/resume/detail/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestGenerateRoadmap(t *testing.T) {
	repo := newFakeRepo()
	engine := &fakeEngine{roadmap: domain.Roadmap{"week_1": "learn go"}}
	router, sessions := newTestRouter(repo, engine)

	payload := `{"skills": ["python"], "goal": "Become a Go Developer", "user_id": "user1"}`
	req := httptest.NewRequest(http.MethodPost, "/roadmap/generate", strings.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.insertRoadmapCalls != 1 {
		t.Errorf("Expected roadmap persisted once, got %d", repo.insertRoadmapCalls)
	}

	roadmap, goal := sessions.ReadRoadmap("user1")
	if roadmap.IsEmpty() || goal != "Become a Go Developer" {
		t.Errorf("Expected roadmap stored in session, got %s %q", roadmap.Canonical(), goal)
	}
}

func TestUpdateProgress(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"known roadmap", `{"roadmap_id": "known", "progress": 60, "completed_weeks": [1,2,3]}`, http.StatusOK},
		{"unknown roadmap", `{"roadmap_id": "missing", "progress": 60, "completed_weeks": [1]}`, http.StatusNotFound},
		{"missing id", `{"progress": 60, "completed_weeks": [1]}`, http.StatusBadRequest},
		{"progress out of range", `{"roadmap_id": "known", "progress": 150, "completed_weeks": []}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newTestRouter(newFakeRepo(), &fakeEngine{})

			req := httptest.NewRequest(http.MethodPut, "/roadmap/progress", strings.NewReader(tc.payload))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Errorf("Expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestChatMessage_Flags(t *testing.T) {
	repo := newFakeRepo()
	repo.resume = &domain.ResumeContext{ResumeContent: "resume", TargetRole: "Engineer"}
	engine := &fakeEngine{
		reply: "added a week",
		patch: &ai.RoadmapPatch{Roadmap: domain.Roadmap{"week_1": "x"}, Goal: "Goal"},
	}
	router, _ := newTestRouter(repo, engine)

	payload := `{"user_id": "user1", "message": "add a week"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["response"] != "added a week" {
		t.Errorf("Expected reply, got %v", resp["response"])
	}
	if resp["context_used"] != true {
		t.Errorf("Expected context_used=true, got %v", resp["context_used"])
	}
	if resp["roadmap_updated"] != true {
		t.Errorf("Expected roadmap_updated=true, got %v", resp["roadmap_updated"])
	}
}

func TestChatRoadmap_Sources(t *testing.T) {
	t.Run("session", func(t *testing.T) {
		router, sessions := newTestRouter(newFakeRepo(), &fakeEngine{})
		sessions.SetRoadmap("user1", domain.Roadmap{"week_1": "x"}, "Goal")

		resp := getJSON(t, router, "/chat/roadmap/user1")
		if resp["source"] != "session" {
			t.Errorf("Expected source=session, got %v", resp["source"])
		}
	})

	t.Run("database", func(t *testing.T) {
		repo := newFakeRepo()
		repo.latestRoadmap = &domain.RoadmapRecord{
			ID:             "rm1",
			Title:          "Stored Plan",
			Roadmap:        domain.Roadmap{"week_1": "y"},
			Progress:       40,
			CompletedWeeks: []int{1, 2},
		}
		router, sessions := newTestRouter(repo, &fakeEngine{})

		resp := getJSON(t, router, "/chat/roadmap/user1")
		if resp["source"] != "database" {
			t.Errorf("Expected source=database, got %v", resp["source"])
		}
		if resp["progress"] != float64(40) {
			t.Errorf("Expected progress=40, got %v", resp["progress"])
		}

		// The stored roadmap is loaded into the session for future chat.
		roadmap, goal := sessions.ReadRoadmap("user1")
		if roadmap.IsEmpty() || goal != "Stored Plan" {
			t.Errorf("Expected roadmap loaded into session, got %s %q", roadmap.Canonical(), goal)
		}
	})

	t.Run("none", func(t *testing.T) {
		router, _ := newTestRouter(newFakeRepo(), &fakeEngine{})

		resp := getJSON(t, router, "/chat/roadmap/user1")
		if resp["source"] != "none" {
			t.Errorf("Expected source=none, got %v", resp["source"])
		}
	})
}

func TestLoadContext(t *testing.T) {
	t.Run("no context", func(t *testing.T) {
		router, _ := newTestRouter(newFakeRepo(), &fakeEngine{})

		req := httptest.NewRequest(http.MethodPost, "/chat/load-context/user1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp["success"] != false {
			t.Errorf("Expected success=false, got %v", resp["success"])
		}
	})

	t.Run("resume and roadmap", func(t *testing.T) {
		repo := newFakeRepo()
		repo.resume = &domain.ResumeContext{ResumeContent: "resume", TargetRole: "Engineer"}
		repo.latestRoadmap = &domain.RoadmapRecord{Title: "Plan", Roadmap: domain.Roadmap{"week_1": "z"}}
		router, sessions := newTestRouter(repo, &fakeEngine{})

		req := httptest.NewRequest(http.MethodPost, "/chat/load-context/user1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp["success"] != true {
			t.Fatalf("Expected success=true, got %v", resp["success"])
		}
		loaded, ok := resp["loaded"].(map[string]interface{})
		if !ok || loaded["resume"] != true || loaded["roadmap"] != true {
			t.Errorf("Expected both loaded, got %v", resp["loaded"])
		}

		roadmap, goal := sessions.ReadRoadmap("user1")
		if roadmap.IsEmpty() || goal != "Plan" {
			t.Errorf("Expected session initialized, got %s %q", roadmap.Canonical(), goal)
		}
	})
}

func getJSON(t *testing.T, router chi.Router, path string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d: %s", path, w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}
