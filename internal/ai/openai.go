package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/career-compass/internal/domain"
	"github.com/sashabaranov/go-openai"
)

// fallbackReply is returned when the model updates the roadmap but produces
// no conversational text.
const fallbackReply = "I've updated your learning roadmap. Take a look and tell me if you want further changes."

// OpenAIEngine implements Engine against an OpenAI-compatible chat API.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an engine backed by the OpenAI chat completion API.
// baseURL may point at any OpenAI-compatible endpoint.
func NewOpenAI(apiKey, baseURL, model string) *OpenAIEngine {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// analysisPayload mirrors the JSON object the model is asked to produce for
// resume analysis.
type analysisPayload struct {
	ATSScore      int            `json:"ats_score"`
	SkillsYouHave []string       `json:"skills_you_have"`
	SkillsYouNeed []string       `json:"skills_you_need"`
	Roadmap       domain.Roadmap `json:"roadmap"`
}

// AnalyzeResume extracts text from the PDF at filePath and asks the model for
// an ATS score, skill lists, and an initial roadmap.
func (e *OpenAIEngine) AnalyzeResume(ctx context.Context, filePath, targetRole, userID string) (*Analysis, error) {
	resumeText, err := extractPDFText(filePath)
	if err != nil {
		return nil, fmt.Errorf("extract resume text: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: analysisPrompt(resumeText, targetRole)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis completion returned no choices")
	}

	var payload analysisPayload
	raw := cleanJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}

	slog.Info("Resume analyzed", "user_id", userID, "ats_score", payload.ATSScore, "roadmap_weeks", len(payload.Roadmap))

	if payload.SkillsYouHave == nil {
		payload.SkillsYouHave = []string{}
	}
	if payload.SkillsYouNeed == nil {
		payload.SkillsYouNeed = []string{}
	}
	if payload.Roadmap == nil {
		payload.Roadmap = domain.Roadmap{}
	}

	return &Analysis{
		ATSScore:      payload.ATSScore,
		SkillsYouHave: payload.SkillsYouHave,
		SkillsYouNeed: payload.SkillsYouNeed,
		ResumeContent: resumeText,
		Roadmap:       payload.Roadmap,
		Sector:        detectSector(resumeText, targetRole),
	}, nil
}

// GenerateRoadmap produces a roadmap from explicit skills and a goal.
func (e *OpenAIEngine) GenerateRoadmap(ctx context.Context, skills []string, goal string) (domain.Roadmap, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: roadmapPrompt(skills, goal)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("roadmap completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("roadmap completion returned no choices")
	}

	var roadmap domain.Roadmap
	raw := cleanJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &roadmap); err != nil {
		return nil, fmt.Errorf("parse roadmap response: %w", err)
	}
	return roadmap, nil
}

// updateRoadmapTool is the function definition the model can call to modify
// the user's learning plan during chat.
var updateRoadmapTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "update_roadmap",
		Description: "Replace the user's learning roadmap. Call this when the user asks to change their learning plan: add or remove weeks, reorder topics, or switch to a new goal. Always pass the complete new roadmap, not a diff.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"goal": map[string]interface{}{
					"type":        "string",
					"description": "Human-readable title of the learning goal",
				},
				"roadmap": map[string]interface{}{
					"type":        "object",
					"description": "The complete new roadmap, week keys mapping to topic and tasks",
				},
			},
			"required": []string{"roadmap"},
		},
	},
}

// ChatWithContext runs one chat turn. When the model calls update_roadmap the
// patch is returned explicitly; this engine never writes into session state.
func (e *OpenAIEngine) ChatWithContext(ctx context.Context, chat ChatContext) (*ChatResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt(chat)},
	}
	for _, msg := range chat.History {
		role := openai.ChatMessageRoleUser
		if msg.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: chat.Message})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:      e.model,
		Messages:   messages,
		Tools:      []openai.Tool{updateRoadmapTool},
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	result := &ChatResult{Reply: choice.Content}

	var patchCall *openai.ToolCall
	for i, tc := range choice.ToolCalls {
		if tc.Function.Name == updateRoadmapTool.Function.Name {
			patchCall = &choice.ToolCalls[i]
			break
		}
	}
	if patchCall == nil {
		return result, nil
	}

	var args updateRoadmapArgs
	if err := json.Unmarshal([]byte(patchCall.Function.Arguments), &args); err != nil {
		slog.Warn("failed to parse update_roadmap arguments", "user_id", chat.UserID, "error", err)
		if result.Reply == "" {
			result.Reply = fallbackReply
		}
		return result, nil
	}
	if !args.Roadmap.IsEmpty() {
		result.Patch = &RoadmapPatch{Roadmap: args.Roadmap, Goal: args.Goal}
	}

	// Second completion so the user still gets a conversational reply after
	// the tool call.
	messages = append(messages, choice, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: patchCall.ID,
		Content:    `{"status": "roadmap updated"}`,
	})
	followUp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
	})
	if err != nil || len(followUp.Choices) == 0 || followUp.Choices[0].Message.Content == "" {
		if err != nil {
			slog.Warn("follow-up completion failed", "user_id", chat.UserID, "error", err)
		}
		if result.Reply == "" {
			result.Reply = fallbackReply
		}
		return result, nil
	}

	result.Reply = followUp.Choices[0].Message.Content
	return result, nil
}

// ClassifySector derives a coarse sector label from resume text and role.
func (e *OpenAIEngine) ClassifySector(resumeText, targetRole string) string {
	return detectSector(resumeText, targetRole)
}
