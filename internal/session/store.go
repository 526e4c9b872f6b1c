// Package session holds the in-memory per-user context shared between the
// HTTP handlers and the reasoning engine, and the reconciliation protocol
// that flushes chat-driven roadmap changes to durable storage.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/ashureev/career-compass/internal/store"
)

// SectorClassifier derives a sector label during hydration.
type SectorClassifier interface {
	ClassifySector(resumeText, targetRole string) string
}

// Store maps user IDs to their in-memory WorkingSet. Hydration from durable
// records is lazy and happens at most once per user per process lifetime
// unless Reset is called. The top-level map and each per-user entry carry
// their own locks so two chat turns for the same user cannot interleave.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	repo       store.Repository
	classifier SectorClassifier
}

// entry pairs a WorkingSet with the lock that guards it. ws == nil means the
// user has not been hydrated or initialized yet.
type entry struct {
	mu sync.Mutex
	ws *domain.WorkingSet
}

// NewStore creates an empty session store.
func NewStore(repo store.Repository, classifier SectorClassifier) *Store {
	return &Store{
		entries:    make(map[string]*entry),
		repo:       repo,
		classifier: classifier,
	}
}

// entry returns the entry for a user, creating it if absent.
func (s *Store) entry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[userID]; ok {
		return e
	}
	e = &entry{}
	s.entries[userID] = e
	return e
}

// GetOrHydrate returns the user's WorkingSet, loading it from durable records
// on first access. Storage failures degrade to empty defaults: a user with no
// prior data is indistinguishable from one whose read failed, so callers must
// not treat absence of data as absence of error.
func (s *Store) GetOrHydrate(ctx context.Context, userID string) *domain.WorkingSet {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		e.ws = s.hydrate(ctx, userID)
	}
	return snapshot(e.ws)
}

// hydrate builds a WorkingSet from the latest durable resume and roadmap.
func (s *Store) hydrate(ctx context.Context, userID string) *domain.WorkingSet {
	ws := domain.EmptyWorkingSet()

	resume, err := s.repo.GetLatestResumeContent(ctx, userID)
	if err != nil {
		slog.Warn("hydration: failed to load resume content, using empty defaults", "user_id", userID, "error", err)
	}
	if resume != nil {
		ws.ResumeText = resume.ResumeContent
		ws.TargetRole = resume.TargetRole
		ws.Sector = s.classifier.ClassifySector(resume.ResumeContent, resume.TargetRole)
	}

	roadmap, err := s.repo.GetLatestRoadmap(ctx, userID)
	if err != nil {
		slog.Warn("hydration: failed to load roadmap, using empty defaults", "user_id", userID, "error", err)
	}
	if roadmap != nil {
		ws.Roadmap = roadmap.Roadmap.Clone()
		ws.RoadmapGoal = roadmap.Title
	}

	slog.Info("Session hydrated", "user_id", userID, "has_resume", resume != nil, "has_roadmap", roadmap != nil)
	return ws
}

// Initialize unconditionally replaces the user's WorkingSet. Used after a
// fresh analysis or an explicit load-context request; no partial merge.
func (s *Store) Initialize(userID string, ws *domain.WorkingSet) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ws = snapshot(ws)
}

// SetRoadmap sets the roadmap and goal for a user, creating a WorkingSet with
// empty defaults if none exists. Does not trigger hydration.
func (s *Store) SetRoadmap(userID string, roadmap domain.Roadmap, goal string) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		e.ws = domain.EmptyWorkingSet()
	}
	e.ws.Roadmap = roadmap.Clone()
	e.ws.RoadmapGoal = goal
}

// ReadRoadmap returns an independent snapshot of the user's live roadmap and
// goal, or empty defaults if no WorkingSet exists. Non-hydrating peek.
func (s *Store) ReadRoadmap(userID string) (domain.Roadmap, string) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		return domain.Roadmap{}, ""
	}
	return e.ws.Roadmap.Clone(), e.ws.RoadmapGoal
}

// Has reports whether a WorkingSet exists for the user. Non-hydrating.
func (s *Store) Has(userID string) bool {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws != nil
}

// Reset discards the user's WorkingSet so the next access hydrates again.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// withLocked runs fn with exclusive access to the user's live WorkingSet,
// creating one with empty defaults if absent. The per-user lock is held for
// the duration of fn; the reconciler relies on this to keep the
// snapshot-call-snapshot sequence atomic against concurrent chat turns.
func (s *Store) withLocked(userID string, fn func(ws *domain.WorkingSet)) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		e.ws = domain.EmptyWorkingSet()
	}
	fn(e.ws)
}

// snapshot copies a WorkingSet deeply enough that callers can read it without
// racing mutations of the live entry.
func snapshot(ws *domain.WorkingSet) *domain.WorkingSet {
	if ws == nil {
		return nil
	}
	out := *ws
	out.SkillsHave = append([]string(nil), ws.SkillsHave...)
	out.SkillsNeed = append([]string(nil), ws.SkillsNeed...)
	out.Roadmap = ws.Roadmap.Clone()
	return &out
}
