package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"personal-assistant-api/internal/gemini"
	"personal-assistant-api/internal/model"
)

// EmailLister is what inbox Q&A needs from persistence.
type EmailLister interface {
	ListEmails(ctx context.Context, userID string, limit int) ([]model.Email, error)
}

// inboxContextSize is how many recent emails are stuffed into the prompt.
const inboxContextSize = 30

// QueryInbox answers a free-form question over the user's stored recent
// emails by handing them to the model as context. Failures degrade to
// friendly replies rather than errors.
func (a *Agent) QueryInbox(ctx context.Context, emails EmailLister, userID, query string) (string, error) {
	recent, err := emails.ListEmails(ctx, userID, inboxContextSize)
	if err != nil {
		return "", fmt.Errorf("query inbox: %w", err)
	}
	if len(recent) == 0 {
		return "I couldn't find any recent emails in your inbox.", nil
	}

	var b strings.Builder
	for _, e := range recent {
		body := e.Body
		if body == "" {
			body = e.Snippet
		}
		fmt.Fprintf(&b, "--- EMAIL ID %s ---\nFrom: %s\nDate: %s\nSubject: %s\nBody: %s\n\n",
			e.ID, e.Sender, e.ReceivedTime.Format("2006-01-02 15:04:05"), e.Subject, body)
	}

	prompt := fmt.Sprintf(`You are an intelligent Inbox Assistant. Answer the user's question based on the provided emails.

USER QUESTION: "%s"

INBOX CONTEXT:
%s

INSTRUCTIONS:
- Answer directly based on the emails.
- Cite the sender or subject if relevant.
- If the answer is not in the emails, say "I couldn't find that information in your recent emails."
- Be concise and helpful.`, query, b.String())

	answer, err := a.llm.GenerateContent(ctx, a.modelName, prompt, gemini.GenerateConfig{})
	if err != nil {
		if isRateLimited(err) {
			return "I'm currently offline due to high traffic. Please try again in a minute.", nil
		}
		a.logger.Warn("inbox query failed", zap.Error(err))
		return "I encountered an error analyzing your inbox. Please try again.", nil
	}
	return strings.TrimSpace(answer), nil
}
