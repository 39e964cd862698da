package research

import (
	"JobPilot/backend/go/internal/llm"
	"JobPilot/backend/go/pkg/models"
	"context"
	"fmt"
	"strings"
)

const replySystemPrompt = `You draft short, professional replies to recruiter outreach on ` +
	`behalf of a senior backend engineer. Be warm but direct, ask one or two concrete ` +
	`questions (compensation range, team, tech stack) when they are not already answered, ` +
	`and never invent facts about the candidate. Answer with the reply text only, no ` +
	`subject line and no surrounding quotes.`

// ReplyWriter generates reply drafts for recruiter messages.
type ReplyWriter struct {
	llm llm.LLM
}

// NewReplyWriter creates a new ReplyWriter.
func NewReplyWriter(model llm.LLM) *ReplyWriter {
	return &ReplyWriter{llm: model}
}

// Draft produces a reply to the recruiter message in the payload, using any
// research details as background.
func (w *ReplyWriter) Draft(ctx context.Context, payload models.MessagePayload) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Company: %s\n\nRecruiter message:\n%s\n", payload.Company, payload.RecruiterMessage)
	if payload.Details != "" {
		fmt.Fprintf(&prompt, "\nWhat we know about the company (JSON):\n%s\n", payload.Details)
	}
	prompt.WriteString("\nWrite the reply.")

	reply, err := w.llm.GenerateText(ctx, replySystemPrompt, prompt.String())
	if err != nil {
		return "", fmt.Errorf("reply generation: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply, nil
}
