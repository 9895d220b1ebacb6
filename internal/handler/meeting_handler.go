package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/store"
)

type chatRequest struct {
	Message             string           `json:"message"`
	ConversationHistory []model.ChatTurn `json:"conversation_history"`
}

type meetingResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Participants string    `json:"participants"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type chatMessageResponse struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is the scheduling-agent endpoint: one natural-language turn in, a
// reply plus the performed action out.
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	reply, err := h.chat.ProcessMessage(c.Request().Context(), userEmail(c), req.Message, req.ConversationHistory)
	if err != nil {
		h.logger.Error("chat turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *Handler) ListMeetings(c echo.Context) error {
	meetings, err := h.store.ListMeetings(c.Request().Context(), userEmail(c))
	if err != nil {
		h.logger.Error("list meetings failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	out := make([]meetingResponse, len(meetings))
	for i, m := range meetings {
		out[i] = meetingResponse{
			ID:           m.ID,
			Title:        m.Title,
			StartTime:    m.StartTime,
			EndTime:      m.EndTime,
			Participants: m.Participants,
			Status:       m.Status,
			CreatedAt:    m.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteMeeting(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id required")
	}

	err := h.store.DeleteMeeting(c.Request().Context(), id, userEmail(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Meeting not found")
	}
	if err != nil {
		h.logger.Error("delete meeting failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Meeting deleted"})
}

func (h *Handler) ChatHistory(c echo.Context) error {
	history, err := h.store.ChatHistory(c.Request().Context(), userEmail(c))
	if err != nil {
		h.logger.Error("chat history failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	out := make([]chatMessageResponse, len(history))
	for i, m := range history {
		out[i] = chatMessageResponse{Sender: m.Sender, Text: m.Text, Timestamp: m.Timestamp}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ClearChatHistory(c echo.Context) error {
	if err := h.store.ClearChatHistory(c.Request().Context(), userEmail(c)); err != nil {
		h.logger.Error("clear chat history failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Chat history cleared"})
}
