package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/ashureev/career-compass/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS resumes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		target_role TEXT NOT NULL,
		analysis_json TEXT NOT NULL,
		resume_content TEXT,
		ats_score INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_resumes_user ON resumes(user_id, created_at);

	CREATE TABLE IF NOT EXISTS roadmaps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		roadmap_json TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		completed_weeks_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_roadmaps_user ON roadmaps(user_id, created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// InsertResume persists a resume analysis and returns the stored record.
func (s *SQLiteStore) InsertResume(ctx context.Context, userID, targetRole string, analysis domain.ResumeAnalysis, resumeContent string, atsScore int) (*domain.ResumeRecord, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	rec := &domain.ResumeRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		TargetRole:    targetRole,
		Analysis:      analysis,
		ResumeContent: resumeContent,
		ATSScore:      atsScore,
		CreatedAt:     time.Now(),
	}

	var content interface{}
	if resumeContent != "" {
		content = resumeContent
	}

	query := `
	INSERT INTO resumes (id, user_id, target_role, analysis_json, resume_content, ats_score, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.TargetRole, string(analysisJSON),
		content, rec.ATSScore, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert resume: %w", err)
	}
	return rec, nil
}

// GetResumeHistory retrieves all resume analyses for a user, newest first.
func (s *SQLiteStore) GetResumeHistory(ctx context.Context, userID string) ([]*domain.ResumeRecord, error) {
	query := `
		SELECT id, user_id, target_role, analysis_json, resume_content, ats_score, created_at
		FROM resumes WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query resume history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close resume history rows", "error", closeErr)
		}
	}()

	var records []*domain.ResumeRecord
	for rows.Next() {
		rec, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resume history: %w", err)
	}
	return records, nil
}

// GetResumeByID retrieves a single resume analysis, or nil if not found.
func (s *SQLiteStore) GetResumeByID(ctx context.Context, id string) (*domain.ResumeRecord, error) {
	query := `
		SELECT id, user_id, target_role, analysis_json, resume_content, ats_score, created_at
		FROM resumes WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	rec, err := scanResume(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetLatestResumeContent retrieves the most recent resume text and target role
// for a user, or nil if the user has no resumes.
func (s *SQLiteStore) GetLatestResumeContent(ctx context.Context, userID string) (*domain.ResumeContext, error) {
	query := `
		SELECT resume_content, target_role
		FROM resumes WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID)

	var content sql.NullString
	var targetRole string
	err := row.Scan(&content, &targetRole)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan resume content: %w", err)
	}

	return &domain.ResumeContext{
		ResumeContent: content.String,
		TargetRole:    targetRole,
	}, nil
}

// InsertRoadmap persists a roadmap with zero progress and returns the stored record.
func (s *SQLiteStore) InsertRoadmap(ctx context.Context, userID, title string, roadmap domain.Roadmap) (*domain.RoadmapRecord, error) {
	roadmapJSON, err := json.Marshal(roadmap)
	if err != nil {
		return nil, fmt.Errorf("marshal roadmap: %w", err)
	}

	now := time.Now()
	rec := &domain.RoadmapRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          title,
		Roadmap:        roadmap,
		Progress:       0,
		CompletedWeeks: []int{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `
	INSERT INTO roadmaps (id, user_id, title, roadmap_json, progress, completed_weeks_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, 0, '[]', ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Title, string(roadmapJSON),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert roadmap: %w", err)
	}
	return rec, nil
}

// GetRoadmaps retrieves all roadmaps for a user, newest first.
func (s *SQLiteStore) GetRoadmaps(ctx context.Context, userID string) ([]*domain.RoadmapRecord, error) {
	query := roadmapSelect + ` WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close roadmap rows", "error", closeErr)
		}
	}()

	var records []*domain.RoadmapRecord
	for rows.Next() {
		rec, err := scanRoadmap(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roadmaps: %w", err)
	}
	return records, nil
}

// GetLatestRoadmap retrieves the most recent roadmap for a user, or nil if the
// user has none.
func (s *SQLiteStore) GetLatestRoadmap(ctx context.Context, userID string) (*domain.RoadmapRecord, error) {
	query := roadmapSelect + ` WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID)
	rec, err := scanRoadmap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRoadmapProgress updates the progress fields of an existing roadmap.
// Returns the updated record, or nil if the roadmap does not exist.
func (s *SQLiteStore) UpdateRoadmapProgress(ctx context.Context, roadmapID string, progress int, completedWeeks []int) (*domain.RoadmapRecord, error) {
	if completedWeeks == nil {
		completedWeeks = []int{}
	}
	weeksJSON, err := json.Marshal(completedWeeks)
	if err != nil {
		return nil, fmt.Errorf("marshal completed weeks: %w", err)
	}

	query := `UPDATE roadmaps SET progress = ?, completed_weeks_json = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, progress, string(weeksJSON), time.Now().Unix(), roadmapID)
	if err != nil {
		return nil, fmt.Errorf("update roadmap progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		slog.Warn("UpdateRoadmapProgress affected 0 rows", "roadmap_id", roadmapID)
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, roadmapSelect+` WHERE id = ?`, roadmapID)
	return scanRoadmap(row)
}

// InsertChatMessage appends one side of a conversation turn.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY
// errors: both sides of a chat turn write in quick succession.
func (s *SQLiteStore) InsertChatMessage(ctx context.Context, userID, role, content string) (*domain.ChatMessage, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var msg *domain.ChatMessage
	var err error
	for i := 0; i < maxRetries; i++ {
		msg, err = s.insertChatMessageOnce(ctx, userID, role, content)
		if err == nil {
			return msg, nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("InsertChatMessage failed with SQLITE_BUSY, retrying",
				"user_id", userID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("insert chat message for %s after %d attempts: %w", userID, maxRetries, err)
}

// insertChatMessageOnce performs a single insert attempt.
func (s *SQLiteStore) insertChatMessageOnce(ctx context.Context, userID, role, content string) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO chat_messages (id, user_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

// GetChatHistory retrieves the most recent messages for a user in
// chronological order (oldest first), bounded by limit.
func (s *SQLiteStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, user_id, role, content, created_at
		FROM chat_messages WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat history rows", "error", closeErr)
		}
	}()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}

	// Query returns newest first; reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

const roadmapSelect = `
	SELECT id, user_id, title, roadmap_json, progress, completed_weeks_json, created_at, updated_at
	FROM roadmaps`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResume(row rowScanner) (*domain.ResumeRecord, error) {
	var rec domain.ResumeRecord
	var analysisJSON string
	var content sql.NullString
	var createdAt int64

	err := row.Scan(&rec.ID, &rec.UserID, &rec.TargetRole, &analysisJSON, &content, &rec.ATSScore, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan resume row: %w", err)
	}

	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	rec.ResumeContent = content.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

func scanRoadmap(row rowScanner) (*domain.RoadmapRecord, error) {
	var rec domain.RoadmapRecord
	var roadmapJSON, weeksJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&rec.ID, &rec.UserID, &rec.Title, &roadmapJSON, &rec.Progress, &weeksJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan roadmap row: %w", err)
	}

	if err := json.Unmarshal([]byte(roadmapJSON), &rec.Roadmap); err != nil {
		return nil, fmt.Errorf("unmarshal roadmap: %w", err)
	}
	if err := json.Unmarshal([]byte(weeksJSON), &rec.CompletedWeeks); err != nil {
		return nil, fmt.Errorf("unmarshal completed weeks: %w", err)
	}
	if rec.CompletedWeeks == nil {
		rec.CompletedWeeks = []int{}
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}
