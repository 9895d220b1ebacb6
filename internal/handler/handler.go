// Package handler exposes the assistant over a JSON HTTP API.
package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"personal-assistant-api/internal/mail"
	"personal-assistant-api/internal/meeting"
	"personal-assistant-api/internal/middleware"
	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/store"
)

// ChatAgent handles one scheduling conversation turn.
type ChatAgent interface {
	ProcessMessage(ctx context.Context, userEmail, message string, history []model.ChatTurn) (meeting.Reply, error)
}

// MailAgent covers the email-side LLM features.
type MailAgent interface {
	Analyze(ctx context.Context, email mail.EmailInput) mail.Analysis
	Rewrite(ctx context.Context, text, style string) (string, error)
	QueryInbox(ctx context.Context, emails mail.EmailLister, userID, query string) (string, error)
}

type Handler struct {
	store  *store.Store
	chat   ChatAgent
	mail   MailAgent
	secret string
	logger *zap.Logger
}

func New(st *store.Store, chat ChatAgent, mailAgent MailAgent, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, chat: chat, mail: mailAgent, secret: secret, logger: logger}
}

// Register wires all routes. Credential endpoints sit behind the rate
// limiter; everything under /api requires a valid token.
func (h *Handler) Register(e *echo.Echo, rl *middleware.RateLimiter) {
	e.GET("/health", h.Health)

	authGroup := e.Group("/auth")
	limited := middleware.RateLimit(rl)
	authGroup.POST("/register", h.RegisterUser, limited)
	authGroup.POST("/login", h.Login, limited)
	authGroup.POST("/refresh", h.Refresh, limited)
	authGroup.GET("/me", h.Me, middleware.Auth(h.secret))
	authGroup.POST("/logout", h.Logout, middleware.Auth(h.secret))

	api := e.Group("/api", middleware.Auth(h.secret))
	api.POST("/meeting-agent/chat", h.Chat)
	api.GET("/meetings", h.ListMeetings)
	api.DELETE("/meetings/:id", h.DeleteMeeting)
	api.GET("/chat/history", h.ChatHistory)
	api.DELETE("/chat/history", h.ClearChatHistory)
	api.POST("/analyze", h.Analyze)
	api.GET("/emails", h.ListEmails)
	api.POST("/emails", h.IngestEmail)
	api.POST("/agent/rewrite", h.Rewrite)
	api.POST("/agent/query_inbox", h.QueryInbox)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}

func userID(c echo.Context) string {
	v, _ := c.Get(middleware.UserIDKey).(string)
	return v
}

func userEmail(c echo.Context) string {
	v, _ := c.Get(middleware.UserEmailKey).(string)
	return v
}
