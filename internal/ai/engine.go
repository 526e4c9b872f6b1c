// Package ai implements the reasoning engine: resume analysis, roadmap
// generation, and contextual chat.
package ai

import (
	"context"

	"github.com/ashureev/career-compass/internal/domain"
)

// Analysis is the full result of analyzing a resume against a target role.
type Analysis struct {
	ATSScore      int
	SkillsYouHave []string
	SkillsYouNeed []string
	ResumeContent string
	Roadmap       domain.Roadmap
	Sector        string
}

// ChatContext carries everything a chat turn needs: the user message, the
// latest resume (when one exists), the live working set, and recent history.
type ChatContext struct {
	UserID  string
	Message string
	Resume  *domain.ResumeContext
	Working *domain.WorkingSet
	History []*domain.ChatMessage
}

// RoadmapPatch is an explicit roadmap mutation produced during chat. The
// engine returns it instead of writing into shared session state; the caller
// decides whether and where to apply it.
type RoadmapPatch struct {
	Roadmap domain.Roadmap
	Goal    string
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Reply string
	Patch *RoadmapPatch
}

// Engine defines the reasoning operations consumed by handlers and the
// session reconciler.
type Engine interface {
	// AnalyzeResume extracts text from the resume file and produces an ATS
	// score, skill lists, and an initial learning roadmap.
	AnalyzeResume(ctx context.Context, filePath, targetRole, userID string) (*Analysis, error)

	// GenerateRoadmap produces a learning roadmap from explicit skills and a
	// goal. Stateless: no session side effects.
	GenerateRoadmap(ctx context.Context, skills []string, goal string) (domain.Roadmap, error)

	// ChatWithContext produces a conversational reply and, when the model
	// decides to modify the user's learning plan, a roadmap patch.
	ChatWithContext(ctx context.Context, chat ChatContext) (*ChatResult, error)

	// ClassifySector derives a coarse sector label from resume text and
	// target role, falling back to "general".
	ClassifySector(resumeText, targetRole string) string
}
