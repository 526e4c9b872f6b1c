package domain

// SectorGeneral is the fallback classification when no resume is available or
// no sector keywords match.
const SectorGeneral = "general"

// WorkingSet is the in-memory per-user context handed to the reasoning engine.
// It is a cache derived from durable records plus live engine state, owned by
// the session store for the lifetime of the process and lost on restart.
// Absence of a WorkingSet means "not yet hydrated", never "known empty".
type WorkingSet struct {
	ResumeText  string
	TargetRole  string
	Sector      string
	SkillsHave  []string
	SkillsNeed  []string
	Roadmap     Roadmap
	RoadmapGoal string
}

// EmptyWorkingSet returns a WorkingSet with empty defaults for every field.
func EmptyWorkingSet() *WorkingSet {
	return &WorkingSet{
		Sector:     SectorGeneral,
		SkillsHave: []string{},
		SkillsNeed: []string{},
		Roadmap:    Roadmap{},
	}
}
