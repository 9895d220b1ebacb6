package store

import (
	"context"

	"personal-assistant-api/internal/model"
)

const emailColumns = `id, message_id, user_id, subject, sender, snippet, body, received_time,
	summary, intent, urgency_score, risk_level, priority, requires_action, is_read,
	suggested_reply, sentiment, tone, created_at`

// InsertEmail stores an analyzed email. Re-ingesting the same upstream
// message id for the same user is a no-op; ok reports whether a row was
// actually written.
func (s *Store) InsertEmail(ctx context.Context, e *model.Email) (ok bool, err error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO emails (id, message_id, user_id, subject, sender, snippet, body, received_time,
		                     summary, intent, urgency_score, risk_level, priority, requires_action,
		                     is_read, suggested_reply, sentiment, tone)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (user_id, message_id) DO NOTHING`,
		e.ID, e.MessageID, e.UserID, e.Subject, e.Sender, e.Snippet, e.Body, e.ReceivedTime,
		e.Summary, e.Intent, e.UrgencyScore, e.RiskLevel, e.Priority, e.RequiresAction,
		e.IsRead, e.SuggestedReply, e.Sentiment, e.Tone,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListEmails returns the user's most recently received emails, newest first.
func (s *Store) ListEmails(ctx context.Context, userID string, limit int) ([]model.Email, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+emailColumns+`
		 FROM emails
		 WHERE user_id = $1
		 ORDER BY received_time DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Email
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(&e.ID, &e.MessageID, &e.UserID, &e.Subject, &e.Sender, &e.Snippet,
			&e.Body, &e.ReceivedTime, &e.Summary, &e.Intent, &e.UrgencyScore, &e.RiskLevel,
			&e.Priority, &e.RequiresAction, &e.IsRead, &e.SuggestedReply, &e.Sentiment,
			&e.Tone, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
