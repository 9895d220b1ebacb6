// Package meeting implements the conversational scheduling agent: intent
// extraction over the LLM, dispatch to calendar mutations with conflict
// detection, and per-user chat history recording.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/store"
)

// User-facing replies for extraction failures.
const (
	msgMalformed   = "I understood, but I'm having trouble processing the details internally. Could you say that again?"
	msgOverwhelmed = "I'm currently overwhelmed with requests. Please try again in a minute."
	msgUpstream    = "I'm having trouble connecting to my brain right now. Please try again."
)

// Store is what the agent needs from persistence; *store.Store satisfies it,
// tests provide an in-memory fake.
type Store interface {
	CreateMeetingIfFree(ctx context.Context, m *model.Meeting) ([]model.Meeting, error)
	MeetingsOnDay(ctx context.Context, userEmail string, day time.Time) ([]model.Meeting, error)
	MeetingByID(ctx context.Context, id, userEmail string) (*model.Meeting, error)
	LastCreatedMeeting(ctx context.Context, userEmail string, scheduledOnly bool) (*model.Meeting, error)
	UpdateMeetingTimes(ctx context.Context, id, userEmail string, start, end time.Time) error
	DeleteMeetingsByTitle(ctx context.Context, userEmail, titleQuery string) ([]string, error)
	DeleteMeeting(ctx context.Context, id, userEmail string) error
	RecordExchange(ctx context.Context, userEmail, userText, agentText string) error
}

// Reply is what the HTTP layer returns to the frontend for one chat turn.
type Reply struct {
	Response string `json:"response"`
	Action   string `json:"action"`
}

// Agent handles one user turn end to end: extract intent, run the matching
// calendar action, record the exchange.
type Agent struct {
	store     Store
	extractor *Extractor
	logger    *zap.Logger
	now       func() time.Time
}

func NewAgent(st Store, ex *Extractor, logger *zap.Logger) (*Agent, error) {
	if st == nil {
		return nil, errors.New("meeting: store must not be nil")
	}
	if ex == nil {
		return nil, errors.New("meeting: extractor must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{store: st, extractor: ex, logger: logger, now: time.Now}, nil
}

// ProcessMessage runs one conversation turn for the given user. Extraction
// failures come back as apologetic replies with action ERROR and are not
// recorded; successful turns always persist exactly one user/agent row pair.
func (a *Agent) ProcessMessage(ctx context.Context, userEmail, message string, history []model.ChatTurn) (Reply, error) {
	res, err := a.extractor.Extract(ctx, message, history)
	if err != nil {
		return a.failureReply(err), nil
	}

	responseText := res.ResponseText
	switch res.Intent {
	case IntentCreateMeeting:
		responseText = a.createMeeting(ctx, userEmail, res.Create)
	case IntentCheckMeeting:
		responseText = a.checkMeetings(ctx, userEmail, res.Check)
	case IntentUpdateMeeting:
		responseText = a.updateMeeting(ctx, userEmail, res.Update)
	case IntentDeleteMeeting:
		responseText = a.deleteMeetings(ctx, userEmail, res.Delete)
	}

	if err := a.store.RecordExchange(ctx, userEmail, message, responseText); err != nil {
		return Reply{}, fmt.Errorf("record exchange: %w", err)
	}

	return Reply{Response: responseText, Action: string(res.Intent)}, nil
}

func (a *Agent) failureReply(err error) Reply {
	var agentErr *Error
	msg := msgUpstream
	if errors.As(err, &agentErr) {
		switch agentErr.Code {
		case ErrorMalformedOutput:
			msg = msgMalformed
		case ErrorRateLimited:
			msg = msgOverwhelmed
		}
	}
	a.logger.Warn("extraction failed", zap.Error(err))
	return Reply{Response: msg, Action: ActionError}
}

func (a *Agent) createMeeting(ctx context.Context, userEmail string, p *CreatePayload) string {
	if p == nil || p.StartTime == "" {
		return "I couldn't work out the meeting time from that. Could you give me the exact date and time?"
	}

	start, err := time.Parse(TimeLayout, p.StartTime)
	if err != nil {
		return "I couldn't work out the meeting time from that. Could you give me the exact date and time?"
	}
	end := start.Add(time.Hour)
	if p.EndTime != "" {
		end, err = time.Parse(TimeLayout, p.EndTime)
		if err != nil {
			return "I couldn't work out the meeting time from that. Could you give me the exact date and time?"
		}
	}
	if !end.After(start) {
		return "The end time must be after the start time. Could you double-check those times?"
	}

	title := p.Title
	if title == "" {
		title = "Meeting"
	}

	m := &model.Meeting{
		ID:           uuid.New().String(),
		Title:        title,
		StartTime:    start,
		EndTime:      end,
		Participants: p.Participants,
		Status:       model.StatusScheduled,
		UserEmail:    userEmail,
	}

	conflicts, err := a.store.CreateMeetingIfFree(ctx, m)
	if err != nil {
		a.logger.Error("create meeting failed", zap.Error(err))
		return "I couldn't save that meeting just now. Please try again."
	}
	if len(conflicts) > 0 {
		titles := make([]string, len(conflicts))
		for i, c := range conflicts {
			titles[i] = c.Title
		}
		return fmt.Sprintf(
			"Conflict detected! You already have %d meeting(s) scheduled at that time: %s. Please choose a different time.",
			len(conflicts), strings.Join(titles, ", "),
		)
	}

	return fmt.Sprintf("Scheduled: %s on %s at %s.",
		title, start.Format("2006-01-02"), start.Format("03:04 PM"))
}

func (a *Agent) checkMeetings(ctx context.Context, userEmail string, p *CheckPayload) string {
	day := a.now()
	if p != nil && p.Date != "" {
		if parsed, err := time.Parse("2006-01-02", p.Date); err == nil {
			day = parsed
		}
	}

	meetings, err := a.store.MeetingsOnDay(ctx, userEmail, day)
	if err != nil {
		a.logger.Error("check meetings failed", zap.Error(err))
		return "I couldn't check the calendar."
	}

	dayLabel := day.Format("Monday, January 02")
	if len(meetings) == 0 {
		return fmt.Sprintf("Your schedule looks clear for %s.", dayLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is your schedule for %s:\n", dayLabel)
	for _, m := range meetings {
		fmt.Fprintf(&b, "• %s (%s - %s)\n",
			m.Title, m.StartTime.Format("03:04 PM"), m.EndTime.Format("03:04 PM"))
	}
	return b.String()
}

func (a *Agent) updateMeeting(ctx context.Context, userEmail string, p *UpdatePayload) string {
	if p == nil || (p.NewStartTime == "" && p.NewEndTime == "") {
		return "Tell me the new start or end time and I'll move the meeting."
	}

	var target *model.Meeting
	var err error
	if p.OriginalMeetingID != "" {
		target, err = a.store.MeetingByID(ctx, p.OriginalMeetingID, userEmail)
	} else {
		target, err = a.store.LastCreatedMeeting(ctx, userEmail, false)
	}
	if errors.Is(err, store.ErrNotFound) {
		return "No meeting found to update."
	}
	if err != nil {
		a.logger.Error("update target lookup failed", zap.Error(err))
		return "Failed to update the meeting due to an error."
	}

	start, end := target.StartTime, target.EndTime
	if p.NewStartTime != "" {
		start, err = time.Parse(TimeLayout, p.NewStartTime)
		if err != nil {
			return "I couldn't understand the new meeting time. Please give it as a full date and time."
		}
	}
	if p.NewEndTime != "" {
		end, err = time.Parse(TimeLayout, p.NewEndTime)
		if err != nil {
			return "I couldn't understand the new meeting time. Please give it as a full date and time."
		}
	}

	if err := a.store.UpdateMeetingTimes(ctx, target.ID, userEmail, start, end); err != nil {
		a.logger.Error("update meeting failed", zap.Error(err))
		return "Failed to update the meeting due to an error."
	}
	return fmt.Sprintf("Updated %s.", target.Title)
}

func (a *Agent) deleteMeetings(ctx context.Context, userEmail string, p *DeletePayload) string {
	var titles []string
	if p != nil {
		titles = p.MeetingTitles
	}

	if len(titles) > 0 {
		var deleted []string
		for _, q := range titles {
			names, err := a.store.DeleteMeetingsByTitle(ctx, userEmail, q)
			if err != nil {
				a.logger.Error("delete by title failed", zap.Error(err))
				return "Failed to cancel the meeting(s) due to an error."
			}
			deleted = append(deleted, names...)
		}
		if len(deleted) > 0 {
			return fmt.Sprintf("Successfully cancelled: %s.", strings.Join(deleted, ", "))
		}
		return fmt.Sprintf("I couldn't find any scheduled meetings matching: %s.", strings.Join(titles, ", "))
	}

	// no titles given, cancel the most recent scheduled meeting
	last, err := a.store.LastCreatedMeeting(ctx, userEmail, true)
	if errors.Is(err, store.ErrNotFound) {
		return "You have no scheduled meetings to cancel."
	}
	if err != nil {
		a.logger.Error("last meeting lookup failed", zap.Error(err))
		return "Failed to cancel the meeting(s) due to an error."
	}
	if err := a.store.DeleteMeeting(ctx, last.ID, userEmail); err != nil {
		a.logger.Error("delete last meeting failed", zap.Error(err))
		return "Failed to cancel the meeting(s) due to an error."
	}
	return fmt.Sprintf("Cancelled your last scheduled meeting: %s.", last.Title)
}
