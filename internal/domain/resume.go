package domain

import (
	"time"
)

// ResumeAnalysis is the structured result of scoring a resume against a role.
type ResumeAnalysis struct {
	ATSScore      int      `json:"ats_score"`
	SkillsYouHave []string `json:"skills_you_have"`
	SkillsYouNeed []string `json:"skills_you_need"`
}

// ResumeRecord is a persisted resume analysis. Append-only: records are never
// mutated or deleted.
type ResumeRecord struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	TargetRole    string         `json:"target_role"`
	Analysis      ResumeAnalysis `json:"analysis_json"`
	ResumeContent string         `json:"resume_content,omitempty"`
	ATSScore      int            `json:"ats_score"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ResumeContext is the slice of the latest resume used as chat context.
type ResumeContext struct {
	ResumeContent string `json:"resume_content"`
	TargetRole    string `json:"target_role"`
}
