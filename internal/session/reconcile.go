package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/career-compass/internal/ai"
	"github.com/ashureev/career-compass/internal/domain"
	"github.com/ashureev/career-compass/internal/store"
)

// DefaultRoadmapGoal titles roadmap records persisted from chat when the
// working set carries no goal of its own.
const DefaultRoadmapGoal = "Learning Path"

// timeoutReply is returned when the reasoning engine does not answer within
// the configured deadline. The user's message is already persisted by then.
const timeoutReply = "Sorry, that took me too long to think about. Please try again."

// Reconciler runs the chat flow: it snapshots the live roadmap before the
// engine call, applies the engine's roadmap patch under the user's lock, and
// flushes a new durable roadmap record when the roadmap actually changed.
type Reconciler struct {
	sessions     *Store
	repo         store.Repository
	engine       ai.Engine
	chatTimeout  time.Duration
	historyLimit int
}

// NewReconciler wires the reconciliation protocol.
func NewReconciler(sessions *Store, repo store.Repository, engine ai.Engine, chatTimeout time.Duration, historyLimit int) *Reconciler {
	if chatTimeout <= 0 {
		chatTimeout = 60 * time.Second
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Reconciler{
		sessions:     sessions,
		repo:         repo,
		engine:       engine,
		chatTimeout:  chatTimeout,
		historyLimit: historyLimit,
	}
}

// ConverseResult is what a chat turn reports back to the handler.
type ConverseResult struct {
	Reply          string
	ContextUsed    bool
	RoadmapUpdated bool
}

// Converse runs one chat turn for a user.
//
// Durable writes in this flow are best-effort: a failed message or roadmap
// insert is logged and the conversational reply is still returned. Only a
// reasoning engine failure fails the turn, since there is no reply to give
// without it.
func (r *Reconciler) Converse(ctx context.Context, userID, message string) (*ConverseResult, error) {
	resumeCtx, err := r.repo.GetLatestResumeContent(ctx, userID)
	if err != nil {
		slog.Warn("failed to load resume context for chat", "user_id", userID, "error", err)
		resumeCtx = nil
	}

	// Hydration side effect only: the engine reads a fresh snapshot under the
	// per-user lock below.
	r.sessions.GetOrHydrate(ctx, userID)

	history, err := r.repo.GetChatHistory(ctx, userID, r.historyLimit)
	if err != nil {
		slog.Warn("failed to load chat history", "user_id", userID, "error", err)
		history = nil
	}

	if _, err := r.repo.InsertChatMessage(ctx, userID, domain.RoleUser, message); err != nil {
		slog.Warn("failed to persist user message", "user_id", userID, "error", err)
	}

	result := &ConverseResult{ContextUsed: resumeCtx != nil}

	// The per-user lock is held across the engine invocation so two
	// concurrent turns for the same user cannot interleave their
	// read-modify-write of the roadmap.
	var (
		engineErr      error
		changedRoadmap domain.Roadmap
		changedGoal    string
	)
	r.sessions.withLocked(userID, func(live *domain.WorkingSet) {
		baseline := live.Roadmap.Canonical()

		chatCtx, cancel := context.WithTimeout(ctx, r.chatTimeout)
		defer cancel()

		chatResult, err := r.engine.ChatWithContext(chatCtx, ai.ChatContext{
			UserID:  userID,
			Message: message,
			Resume:  resumeCtx,
			Working: snapshot(live),
			History: history,
		})
		if err != nil {
			engineErr = err
			return
		}
		result.Reply = chatResult.Reply

		if chatResult.Patch != nil {
			live.Roadmap = chatResult.Patch.Roadmap.Clone()
			if chatResult.Patch.Goal != "" {
				live.RoadmapGoal = chatResult.Patch.Goal
			}
		}

		// An empty post-call roadmap never counts as modified, even against
		// a non-empty baseline. Comparison is on canonical encodings, not
		// identity: the baseline is an independent snapshot.
		post := live.Roadmap.Canonical()
		if post != baseline && !live.Roadmap.IsEmpty() {
			changedRoadmap = live.Roadmap.Clone()
			changedGoal = live.RoadmapGoal
			if changedGoal == "" {
				changedGoal = DefaultRoadmapGoal
			}
		}
	})

	if engineErr != nil {
		if errors.Is(engineErr, context.DeadlineExceeded) {
			slog.Warn("reasoning engine timed out", "user_id", userID, "timeout", r.chatTimeout)
			result.Reply = timeoutReply
			r.persistReply(ctx, userID, result.Reply)
			return result, nil
		}
		return nil, engineErr
	}

	if changedRoadmap != nil {
		if _, err := r.repo.InsertRoadmap(ctx, userID, changedGoal, changedRoadmap); err != nil {
			slog.Warn("failed to persist roadmap modified during chat", "user_id", userID, "error", err)
		} else {
			slog.Info("Roadmap modified during chat", "user_id", userID, "goal", changedGoal)
		}
		result.RoadmapUpdated = true
	}

	r.persistReply(ctx, userID, result.Reply)
	return result, nil
}

func (r *Reconciler) persistReply(ctx context.Context, userID, reply string) {
	if _, err := r.repo.InsertChatMessage(ctx, userID, domain.RoleAssistant, reply); err != nil {
		slog.Warn("failed to persist assistant message", "user_id", userID, "error", err)
	}
}
