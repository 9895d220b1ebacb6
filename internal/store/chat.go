package store

import (
	"context"

	"github.com/google/uuid"

	"personal-assistant-api/internal/model"
)

// RecordExchange inserts the user and agent sides of one conversation turn in
// a single transaction, so a turn is either fully recorded or not at all.
func (s *Store) RecordExchange(ctx context.Context, userEmail, userText, agentText string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_history (id, sender, text, user_email) VALUES ($1,$2,$3,$4)`,
		uuid.New().String(), model.SenderUser, userText, userEmail,
	)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO chat_history (id, sender, text, user_email) VALUES ($1,$2,$3,$4)`,
		uuid.New().String(), model.SenderAgent, agentText, userEmail,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ChatHistory returns the user's messages ordered oldest first.
func (s *Store) ChatHistory(ctx context.Context, userEmail string) ([]model.ChatMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, text, timestamp, user_email
		 FROM chat_history
		 WHERE user_email = $1
		 ORDER BY timestamp`, userEmail,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.Sender, &m.Text, &m.Timestamp, &m.UserEmail); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ClearChatHistory(ctx context.Context, userEmail string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chat_history WHERE user_email = $1`, userEmail,
	)
	return err
}
