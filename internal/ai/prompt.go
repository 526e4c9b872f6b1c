package ai

import (
	"fmt"
	"strings"

	"github.com/ashureev/career-compass/internal/domain"
)

// maxResumeChars bounds how much resume text is sent to the model.
const maxResumeChars = 12000

func analysisPrompt(resumeText, targetRole string) string {
	return fmt.Sprintf(`You are an expert AI career assistant that evaluates how well a resume matches a target role.

Target role: %s

Resume text:
%s

Your goal is to:
- Score the resume against the target role as an ATS would, from 0 to 100.
- List the relevant skills the candidate already has.
- List the skills the candidate is missing for the target role.
- Build a week-by-week learning roadmap that closes the gap.

Return your result as a structured JSON object in this format:

{
  "ats_score": number,
  "skills_you_have": [string],
  "skills_you_need": [string],
  "roadmap": {
    "week_1": {"topic": string, "tasks": [string]},
    "week_2": {"topic": string, "tasks": [string]}
  }
}

Base all reasoning only on the provided text. Do not assume experience not explicitly mentioned.
Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`,
		targetRole, truncate(resumeText, maxResumeChars))
}

func roadmapPrompt(skills []string, goal string) string {
	return fmt.Sprintf(`You are an expert AI career assistant that designs learning roadmaps.

Goal: %s
Current skills: %s

Build a week-by-week learning roadmap that takes the learner from their current skills to the goal.

Return your result as a structured JSON object mapping week keys to content:

{
  "week_1": {"topic": string, "tasks": [string]},
  "week_2": {"topic": string, "tasks": [string]}
}

Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`,
		goal, strings.Join(skills, ", "))
}

func chatSystemPrompt(chat ChatContext) string {
	var b strings.Builder
	b.WriteString("You are an AI career assistant. You help the user understand their resume analysis, plan their learning, and answer career questions.\n")

	if chat.Working != nil && chat.Working.Sector != "" {
		fmt.Fprintf(&b, "The user's sector is %q.\n", chat.Working.Sector)
	}
	if chat.Resume != nil {
		fmt.Fprintf(&b, "The user is targeting the role %q.\n", chat.Resume.TargetRole)
		fmt.Fprintf(&b, "Their resume:\n%s\n", truncate(chat.Resume.ResumeContent, maxResumeChars))
	}
	if chat.Working != nil && !chat.Working.Roadmap.IsEmpty() {
		fmt.Fprintf(&b, "Their current learning roadmap (goal %q):\n%s\n",
			chat.Working.RoadmapGoal, truncate(chat.Working.Roadmap.Canonical(), maxResumeChars))
	}

	b.WriteString("When the user asks to change their learning plan (add weeks, reorder topics, switch goals), call the update_roadmap function with the complete new roadmap. Otherwise just answer conversationally.")
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// updateRoadmapArgs is the payload the model supplies when calling the
// update_roadmap function.
type updateRoadmapArgs struct {
	Goal    string         `json:"goal"`
	Roadmap domain.Roadmap `json:"roadmap"`
}
