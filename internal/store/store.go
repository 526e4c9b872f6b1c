// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/career-compass/internal/domain"
)

// Repository defines the interface for persisting resumes, roadmaps, and chat
// messages. Durable records survive process restarts; the in-memory session
// state does not and is rebuilt from these records on demand.
type Repository interface {
	// InsertResume persists a resume analysis and returns the stored record.
	InsertResume(ctx context.Context, userID, targetRole string, analysis domain.ResumeAnalysis, resumeContent string, atsScore int) (*domain.ResumeRecord, error)

	// GetResumeHistory retrieves all resume analyses for a user, newest first.
	GetResumeHistory(ctx context.Context, userID string) ([]*domain.ResumeRecord, error)

	// GetResumeByID retrieves a single resume analysis, or nil if not found.
	GetResumeByID(ctx context.Context, id string) (*domain.ResumeRecord, error)

	// GetLatestResumeContent retrieves the most recent resume text and target
	// role for a user, or nil if the user has no resumes.
	GetLatestResumeContent(ctx context.Context, userID string) (*domain.ResumeContext, error)

	// InsertRoadmap persists a roadmap with zero progress and returns the
	// stored record. Each call creates a new record.
	InsertRoadmap(ctx context.Context, userID, title string, roadmap domain.Roadmap) (*domain.RoadmapRecord, error)

	// GetRoadmaps retrieves all roadmaps for a user, newest first.
	GetRoadmaps(ctx context.Context, userID string) ([]*domain.RoadmapRecord, error)

	// GetLatestRoadmap retrieves the most recent roadmap for a user, or nil
	// if the user has none.
	GetLatestRoadmap(ctx context.Context, userID string) (*domain.RoadmapRecord, error)

	// UpdateRoadmapProgress updates the progress fields of an existing
	// roadmap, leaving title and content untouched. Returns the updated
	// record, or nil if the roadmap does not exist.
	UpdateRoadmapProgress(ctx context.Context, roadmapID string, progress int, completedWeeks []int) (*domain.RoadmapRecord, error)

	// InsertChatMessage appends one side of a conversation turn.
	InsertChatMessage(ctx context.Context, userID, role, content string) (*domain.ChatMessage, error)

	// GetChatHistory retrieves the most recent messages for a user in
	// chronological order (oldest first), bounded by limit.
	GetChatHistory(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
