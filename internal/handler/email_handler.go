package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"personal-assistant-api/internal/mail"
	"personal-assistant-api/internal/model"
)

type ingestEmailRequest struct {
	MessageID    string `json:"message_id"`
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	ReceivedTime string `json:"received_time"`
	Snippet      string `json:"snippet"`
	Body         string `json:"body"`
}

type rewriteRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type queryInboxRequest struct {
	Query string `json:"query"`
}

// Analyze runs the LLM verdict on a single email without storing anything.
func (h *Handler) Analyze(c echo.Context) error {
	var req mail.EmailInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, h.mail.Analyze(c.Request().Context(), req))
}

// IngestEmail analyzes an email and stores it, deduplicated by the upstream
// message id.
func (h *Handler) IngestEmail(c echo.Context) error {
	var req ingestEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MessageID == "" || req.Subject == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_id and subject required")
	}

	received, err := parseReceivedTime(req.ReceivedTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unparseable received_time")
	}

	ctx := c.Request().Context()
	analysis := h.mail.Analyze(ctx, mail.EmailInput{
		Subject:      req.Subject,
		Sender:       req.Sender,
		ReceivedTime: req.ReceivedTime,
		BodyPreview:  req.Snippet,
		Body:         req.Body,
	})

	e := &model.Email{
		ID:             uuid.New().String(),
		MessageID:      req.MessageID,
		UserID:         userID(c),
		Subject:        req.Subject,
		Sender:         req.Sender,
		Snippet:        req.Snippet,
		Body:           req.Body,
		ReceivedTime:   received,
		Summary:        analysis.Summary,
		Intent:         analysis.Intent,
		UrgencyScore:   analysis.UrgencyScore,
		RiskLevel:      analysis.RiskLevel,
		Priority:       analysis.Priority,
		RequiresAction: analysis.RequiresAction,
		Sentiment:      analysis.Sentiment,
		Tone:           analysis.Tone,
	}
	if analysis.SuggestedReply != nil {
		e.SuggestedReply = *analysis.SuggestedReply
	}

	created, err := h.store.InsertEmail(ctx, e)
	if err != nil {
		h.logger.Error("insert email failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !created {
		return c.JSON(http.StatusOK, map[string]any{"message": "Email already ingested", "analysis": analysis})
	}
	return c.JSON(http.StatusCreated, map[string]any{"message": "Email ingested", "analysis": analysis})
}

func (h *Handler) ListEmails(c echo.Context) error {
	emails, err := h.store.ListEmails(c.Request().Context(), userID(c), 50)
	if err != nil {
		h.logger.Error("list emails failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	type emailResponse struct {
		ID             string    `json:"id"`
		Subject        string    `json:"subject"`
		Sender         string    `json:"sender"`
		Snippet        string    `json:"snippet"`
		ReceivedTime   time.Time `json:"received_time"`
		Summary        string    `json:"summary"`
		Intent         string    `json:"intent"`
		UrgencyScore   int       `json:"urgency_score"`
		RiskLevel      string    `json:"risk_level"`
		Priority       string    `json:"priority"`
		RequiresAction bool      `json:"requires_action"`
		IsRead         bool      `json:"is_read"`
		SuggestedReply string    `json:"suggested_reply"`
		Sentiment      string    `json:"sentiment"`
		Tone           string    `json:"tone"`
	}
	out := make([]emailResponse, len(emails))
	for i, e := range emails {
		out[i] = emailResponse{
			ID:             e.ID,
			Subject:        e.Subject,
			Sender:         e.Sender,
			Snippet:        e.Snippet,
			ReceivedTime:   e.ReceivedTime,
			Summary:        e.Summary,
			Intent:         e.Intent,
			UrgencyScore:   e.UrgencyScore,
			RiskLevel:      e.RiskLevel,
			Priority:       e.Priority,
			RequiresAction: e.RequiresAction,
			IsRead:         e.IsRead,
			SuggestedReply: e.SuggestedReply,
			Sentiment:      e.Sentiment,
			Tone:           e.Tone,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Rewrite(c echo.Context) error {
	var req rewriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.mail.Rewrite(c.Request().Context(), req.Text, req.Style)
	if err != nil {
		h.logger.Error("rewrite failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"result": result})
}

func (h *Handler) QueryInbox(c echo.Context) error {
	var req queryInboxRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	answer, err := h.mail.QueryInbox(c.Request().Context(), h.store, userID(c), req.Query)
	if err != nil {
		h.logger.Error("inbox query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"result": answer})
}

func parseReceivedTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
