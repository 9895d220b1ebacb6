// Package mail holds the email-side LLM features: per-email analysis, draft
// rewriting, and question answering over the stored inbox.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"personal-assistant-api/internal/gemini"
	"personal-assistant-api/internal/retry"
)

const analyzePrompt = `You are an elite AI Executive Assistant. Analyze the email explicitly based on the FULL BODY content provided.

Extract/Generate:
1. **intent**: "Meeting Request", "System Alert", "Personal", "Newsletter", etc.
2. **urgency_score**: 1 (Low) to 5 (Critical).
3. **risk_level**: "Low", "Medium", "High" (Spam/Phishing).
4. **priority**: "P1" (Critical) to "P4" (Low).
5. **requires_action**: Boolean.
6. **suggested_actions**: List of strings (e.g. "Reply", "Archive").
7. **summary**: MAX 10 WORDS. Focus on the 'what' and 'deadline'. No "This email is about...".
8. **suggested_reply**: A professional, complete, contextual reply ready to send. DO NOT use placeholders like "[Your Name]". Sign off as "Best,". Ensure the tone matches the context. If no reply is needed, return null.
9. **sentiment**: "Positive", "Neutral", "Negative".
10. **tone**: "Formal", "Casual", "Urgent", "Friendly".`

// LLMClient is the single model call the mail agent depends on.
type LLMClient interface {
	GenerateContent(ctx context.Context, modelName, prompt string, cfg gemini.GenerateConfig) (string, error)
}

// EmailInput is one email handed to Analyze.
type EmailInput struct {
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	ReceivedTime string `json:"received_time"`
	BodyPreview  string `json:"body_preview"`
	Body         string `json:"body"`
}

func (e EmailInput) promptText() string {
	content := e.Body
	if content == "" {
		content = e.BodyPreview
	}
	return fmt.Sprintf("Subject: %s\nSender: %s\nReceivedTime: %s\nBody: %s\n",
		e.Subject, e.Sender, e.ReceivedTime, content)
}

// Analysis is the structured verdict for one email.
type Analysis struct {
	Intent           string   `json:"intent"`
	UrgencyScore     int      `json:"urgency_score"`
	RiskLevel        string   `json:"risk_level"`
	Priority         string   `json:"priority"`
	RequiresAction   bool     `json:"requires_action"`
	SuggestedActions []string `json:"suggested_actions"`
	Summary          string   `json:"summary"`
	SuggestedReply   *string  `json:"suggested_reply"`
	Sentiment        string   `json:"sentiment"`
	Tone             string   `json:"tone"`
}

// fallbackAnalysis is returned when the model cannot be reached or its output
// cannot be parsed, so callers always get a usable verdict.
func fallbackAnalysis() Analysis {
	return Analysis{
		Intent:           "Error Fallback",
		UrgencyScore:     1,
		RiskLevel:        "Low",
		Priority:         "P4",
		RequiresAction:   false,
		SuggestedActions: []string{},
		Summary:          "Failed to analyze email.",
		Sentiment:        "Neutral",
		Tone:             "Neutral",
	}
}

// Agent runs the email-analysis and rewrite calls against the LLM, with the
// same quota backoff the scheduling agent uses.
type Agent struct {
	llm       LLMClient
	modelName string
	policy    retry.Policy
	logger    *zap.Logger
}

func NewAgent(llm LLMClient, modelName string, logger *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("mail: llm client must not be nil")
	}
	if modelName == "" {
		return nil, errors.New("mail: model name must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		llm:       llm,
		modelName: modelName,
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   10 * time.Second,
			Multiplier:  2,
			Retryable:   isRateLimited,
		},
		logger: logger,
	}, nil
}

func isRateLimited(err error) bool {
	var statusErr *gemini.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// Analyze asks the model for a structured verdict on one email. It never
// fails: unreachable or malformed model output degrades to the fallback
// verdict.
func (a *Agent) Analyze(ctx context.Context, email EmailInput) Analysis {
	prompt := fmt.Sprintf("%s\n\nINPUT EMAIL\n\n%s\n\nOUTPUT JSON", analyzePrompt, email.promptText())

	var raw string
	err := a.policy.Do(ctx, func() error {
		var callErr error
		raw, callErr = a.llm.GenerateContent(ctx, a.modelName, prompt, gemini.GenerateConfig{
			ResponseMIMEType: "application/json",
		})
		return callErr
	})
	if err != nil {
		a.logger.Warn("email analysis call failed", zap.Error(err))
		return fallbackAnalysis()
	}

	cleaned := stripFences(raw)
	var out Analysis
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		a.logger.Warn("email analysis not parseable", zap.String("raw", raw), zap.Error(err))
		return fallbackAnalysis()
	}
	return out
}

// Rewrite restyles a draft. Styles: formal, casual, shorten, fix_grammar.
func (a *Agent) Rewrite(ctx context.Context, text, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(`You are an elite AI Editor. Rewrite the following email draft.

GOAL: Make it %s.

RULES:
- Keep the core meaning.
- Return ONLY the rewritten text. No "Here is the rewritten email:" prefix.
- If 'fix_grammar', just correct errors.
- If 'shorten', concise it significantly.

DRAFT:
%s

REWRITTEN:`, style, text)

	raw, err := a.llm.GenerateContent(ctx, a.modelName, prompt, gemini.GenerateConfig{
		ResponseMIMEType: "text/plain",
	})
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func stripFences(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
