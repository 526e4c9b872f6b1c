package ai

import (
	"strings"

	"github.com/ashureev/career-compass/internal/domain"
)

// sectorKeywords lists sector labels with the terms that indicate them, in
// priority order: ties on keyword hits resolve to the earliest sector.
// Matching is case-insensitive over resume text and target role combined.
var sectorKeywords = []struct {
	sector   string
	keywords []string
}{
	{"technology", []string{"software", "developer", "engineer", "programming", "devops", "cloud", "backend", "frontend", "data scientist", "machine learning"}},
	{"finance", []string{"finance", "accounting", "banking", "investment", "audit", "trading", "financial analyst"}},
	{"healthcare", []string{"healthcare", "medical", "nurse", "clinical", "pharma", "hospital", "patient"}},
	{"marketing", []string{"marketing", "seo", "social media", "brand", "advertising", "content strategy", "campaign"}},
	{"design", []string{"designer", "ux", "ui", "figma", "graphic", "illustration", "product design"}},
	{"education", []string{"teacher", "teaching", "curriculum", "tutor", "instructor", "education"}},
}

// detectSector classifies the sector from resume text plus the target role.
// Returns the sector with the most keyword hits, or "general" when nothing
// matches.
func detectSector(resumeText, targetRole string) string {
	haystack := strings.ToLower(resumeText + " " + targetRole)

	best := domain.SectorGeneral
	bestHits := 0
	for _, entry := range sectorKeywords {
		hits := 0
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = entry.sector
			bestHits = hits
		}
	}
	return best
}
