package model

import "time"

// Meeting statuses.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// Chat history senders.
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Meeting struct {
	ID           string
	Title        string
	StartTime    time.Time
	EndTime      time.Time
	Participants string
	Status       string
	UserEmail    string
	CreatedAt    time.Time
}

// ChatMessage is one persisted side of a conversation turn.
type ChatMessage struct {
	ID        string
	Sender    string
	Text      string
	Timestamp time.Time
	UserEmail string
}

// ChatTurn is the wire shape the frontend sends as conversation context.
type ChatTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type Email struct {
	ID             string
	MessageID      string
	UserID         string
	Subject        string
	Sender         string
	Snippet        string
	Body           string
	ReceivedTime   time.Time
	Summary        string
	Intent         string
	UrgencyScore   int
	RiskLevel      string
	Priority       string
	RequiresAction bool
	IsRead         bool
	SuggestedReply string
	Sentiment      string
	Tone           string
	CreatedAt      time.Time
}
