package usecase

import (
	"strings"
	"time"

	"wanderbot/internal/domain"
)

// PromptBuilder constructs the message array for model calls from the
// resolved agent profile, persisted history and the in-flight exchange.
type PromptBuilder struct {
	system      string
	model       string
	maxTokens   int
	temperature float64
	trimmer     *HistoryTrimmer
}

// NewPromptBuilder creates a prompt builder for the given profile.
func NewPromptBuilder(profile domain.AgentProfile, model string, maxTokens int, temperature float64) *PromptBuilder {
	return &PromptBuilder{
		system:      renderSystemPrompt(profile),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// SetTrimmer sets the token-budget trimmer applied to persisted history.
// A nil trimmer sends the full history.
func (pb *PromptBuilder) SetTrimmer(t *HistoryTrimmer) {
	pb.trimmer = t
}

// Build assembles: system prompt + trimmed history + in-flight messages.
// Pending holds the current user message and any model/tool messages
// accumulated in this request's loop; they are never trimmed.
func (pb *PromptBuilder) Build(history []domain.Turn, pending []domain.Message, tools []domain.ToolSchema) domain.ChatRequest {
	if pb.trimmer != nil {
		history = pb.trimmer.Trim(history)
	}

	messages := make([]domain.Message, 0, 1+len(history)+len(pending))
	messages = append(messages, domain.Message{
		Role:      domain.RoleSystem,
		Content:   pb.system,
		Timestamp: time.Now(),
	})
	for _, t := range history {
		messages = append(messages, domain.Message{
			Role:      t.Role,
			Content:   t.Text,
			Timestamp: t.Timestamp,
		})
	}
	messages = append(messages, pending...)

	return domain.ChatRequest{
		Model:       pb.model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   pb.maxTokens,
		Temperature: pb.temperature,
	}
}

// renderSystemPrompt folds the profile's identity into its instructions.
func renderSystemPrompt(profile domain.AgentProfile) string {
	var sb strings.Builder
	if profile.Name != "" {
		sb.WriteString("You are " + profile.Name + ".")
		if profile.Description != "" {
			sb.WriteString(" " + profile.Description)
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString(profile.Instructions)
	return sb.String()
}
