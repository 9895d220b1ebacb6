package meeting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"personal-assistant-api/internal/gemini"
	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/retry"
)

// historyWindow is how many trailing conversation turns are replayed to the
// model for context.
const historyWindow = 6

const systemPrompt = `You are an intelligent AI Meeting Scheduling Agent that acts as a personal assistant.
Your responsibility is to create, assign, check, update, and cancel meetings based strictly on natural language user input.

Current Date: %s

You must return a JSON object with the following structure:
{
    "thought_process": "Short reasoning",
    "intent": "CREATE_MEETING" | "CHECK_MEETING" | "UPDATE_MEETING" | "DELETE_MEETING" | "GENERAL_QUERY" | "EXIT_TASK" | "ASK_INFO",
    "response_text": "Natural language response to the user",
    "action_payload": { ... details for action ... }
}

ACTION PAYLOADS:
- CREATE_MEETING: { "title": "...", "start_time": "YYYY-MM-DD HH:MM:SS", "end_time": "YYYY-MM-DD HH:MM:SS", "participants": "..." }
- UPDATE_MEETING: { "original_meeting_id": null, "new_end_time": "...", "new_start_time": "..." }
- CHECK_MEETING: { "date": "YYYY-MM-DD" }
- DELETE_MEETING: { "meeting_titles": ["Title1", "Title2"] }

RULES:
1. If missing info for creation (date, time), intent = ASK_INFO.
2. If checking schedule and no date specified, assume TODAY.
3. For DELETE_MEETING, provide the titles of the meetings to cancel in 'meeting_titles'. If user says "delete all" or "both", list them or try to identify them from context.
4. If the user wants to perform TWO actions (e.g. "Delete X and Schedule Y"), prioritize the DELETE action first, and in your response ask for confirmation to proceed with creation. DO NOT attempt to do both.
5. Be professional and helpful.`

// LLMClient is the one call the extractor needs from the model backend.
type LLMClient interface {
	GenerateContent(ctx context.Context, modelName, prompt string, cfg gemini.GenerateConfig) (string, error)
}

// Extractor turns a free-form user message plus conversation context into a
// structured IntentResult via one LLM round trip.
type Extractor struct {
	llm       LLMClient
	modelName string
	policy    retry.Policy
	logger    *zap.Logger
	now       func() time.Time
}

func NewExtractor(llm LLMClient, modelName string, logger *zap.Logger) (*Extractor, error) {
	if llm == nil {
		return nil, errors.New("meeting: llm client must not be nil")
	}
	if modelName == "" {
		return nil, errors.New("meeting: model name must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		llm:       llm,
		modelName: modelName,
		policy:    quotaRetryPolicy(logger),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// quotaRetryPolicy retries only throttling failures: 3 attempts with 10s,
// 20s, 40s waits before giving up.
func quotaRetryPolicy(logger *zap.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Multiplier:  2,
		Retryable: func(err error) bool {
			if !isRateLimited(err) {
				return false
			}
			logger.Warn("llm quota hit, backing off", zap.Error(err))
			return true
		},
	}
}

// isRateLimited reports whether err signals throttling: an HTTP 429 or a
// quota marker in the error text.
func isRateLimited(err error) bool {
	var statusErr *gemini.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// Extract runs the LLM round trip and parses the structured reply. Failures
// are typed *Error values: MALFORMED_OUTPUT is never retried, RATE_LIMITED is
// returned only after the backoff budget is spent, everything else maps to
// UPSTREAM_ERROR.
func (e *Extractor) Extract(ctx context.Context, userMessage string, history []model.ChatTurn) (*IntentResult, error) {
	prompt := e.buildPrompt(userMessage, history)

	var raw string
	err := e.policy.Do(ctx, func() error {
		var callErr error
		raw, callErr = e.llm.GenerateContent(ctx, e.modelName, prompt, gemini.GenerateConfig{
			ResponseMIMEType: "application/json",
		})
		return callErr
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, newError(ErrorRateLimited, "quota_retries_exhausted", err)
		}
		return nil, newError(ErrorUpstream, "llm_call_failed", err)
	}

	e.logger.Debug("llm raw response", zap.String("response", raw))

	res, err := parseIntentResult(raw)
	if err != nil {
		e.logger.Warn("llm response not parseable", zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (e *Extractor) buildPrompt(userMessage string, history []model.ChatTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "System: %s\n\n", fmt.Sprintf(systemPrompt, e.now().Format(TimeLayout)))

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		role := "Assistant"
		if turn.Sender == model.SenderUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Text)
	}

	fmt.Fprintf(&b, "User: %s\nAssistant:", userMessage)
	return b.String()
}
