// Package domain contains core domain types for the Career Compass application.
package domain

import (
	"encoding/json"
	"time"
)

// Roadmap is an AI-generated learning plan. Its shape is decided by the
// reasoning engine and treated as opaque here beyond emptiness and
// value-equality checks.
type Roadmap map[string]any

// IsEmpty returns true if the roadmap has no content.
func (r Roadmap) IsEmpty() bool {
	return len(r) == 0
}

// Canonical returns a stable string encoding for value comparison.
// encoding/json sorts map keys, so two roadmaps with equal content
// always produce the same encoding regardless of in-memory identity.
func (r Roadmap) Canonical() string {
	if len(r) == 0 {
		return "{}"
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Clone returns an independent deep copy via a JSON round trip.
func (r Roadmap) Clone() Roadmap {
	if len(r) == 0 {
		return Roadmap{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return Roadmap{}
	}
	var out Roadmap
	if err := json.Unmarshal(b, &out); err != nil {
		return Roadmap{}
	}
	return out
}

// RoadmapRecord is a persisted roadmap. Created on generation or when a chat
// turn modifies the live roadmap; only progress fields are ever updated.
type RoadmapRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Roadmap        Roadmap   `json:"roadmap_json"`
	Progress       int       `json:"progress"`
	CompletedWeeks []int     `json:"completed_weeks"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
