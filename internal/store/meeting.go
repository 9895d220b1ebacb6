package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"personal-assistant-api/internal/model"
)

var ErrNotFound = errors.New("store: not found")

const meetingColumns = `id, title, start_time, end_time, participants, status, user_email, created_at`

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	m := &model.Meeting{}
	err := row.Scan(&m.ID, &m.Title, &m.StartTime, &m.EndTime,
		&m.Participants, &m.Status, &m.UserEmail, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMeetingIfFree inserts m unless a scheduled meeting of the same user
// overlaps [start,end). The overlap scan and the insert run in one
// transaction holding a per-user advisory lock, so two concurrent creates for
// the same user cannot both pass the check. Returns the conflicting meetings
// (insert skipped) when any exist.
func (s *Store) CreateMeetingIfFree(ctx context.Context, m *model.Meeting) ([]model.Meeting, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// serialize check-then-insert per user
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.UserEmail); err != nil {
		return nil, err
	}

	// overlap if existing.start < new.end AND existing.end > new.start;
	// strict comparison keeps back-to-back meetings conflict-free
	rows, err := tx.Query(ctx,
		`SELECT `+meetingColumns+`
		 FROM meetings
		 WHERE user_email = $1
		   AND status = 'scheduled'
		   AND start_time < $3
		   AND end_time > $2
		 ORDER BY start_time`, m.UserEmail, m.StartTime, m.EndTime,
	)
	if err != nil {
		return nil, err
	}
	conflicts, err := collectMeetings(rows)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return conflicts, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO meetings (id, title, start_time, end_time, participants, status, user_email)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.Title, m.StartTime, m.EndTime, m.Participants, m.Status, m.UserEmail,
	)
	if err != nil {
		return nil, err
	}
	return nil, tx.Commit(ctx)
}

// MeetingsOnDay returns the user's scheduled meetings starting on the
// calendar day of day, ordered by start time.
func (s *Store) MeetingsOnDay(ctx context.Context, userEmail string, day time.Time) ([]model.Meeting, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+`
		 FROM meetings
		 WHERE user_email = $1
		   AND status = 'scheduled'
		   AND start_time >= $2 AND start_time < $3
		 ORDER BY start_time`, userEmail, dayStart, dayStart.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, err
	}
	return collectMeetings(rows)
}

// ListMeetings returns every meeting of the user ordered by start time.
func (s *Store) ListMeetings(ctx context.Context, userEmail string) ([]model.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+`
		 FROM meetings
		 WHERE user_email = $1
		 ORDER BY start_time`, userEmail,
	)
	if err != nil {
		return nil, err
	}
	return collectMeetings(rows)
}

func (s *Store) MeetingByID(ctx context.Context, id, userEmail string) (*model.Meeting, error) {
	return scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+`
		 FROM meetings WHERE id = $1 AND user_email = $2`, id, userEmail,
	))
}

// LastCreatedMeeting returns the user's most recently created meeting.
// scheduledOnly narrows the lookup to status 'scheduled'.
func (s *Store) LastCreatedMeeting(ctx context.Context, userEmail string, scheduledOnly bool) (*model.Meeting, error) {
	q := `SELECT ` + meetingColumns + `
	      FROM meetings
	      WHERE user_email = $1`
	if scheduledOnly {
		q += ` AND status = 'scheduled'`
	}
	q += ` ORDER BY created_at DESC LIMIT 1`
	return scanMeeting(s.pool.QueryRow(ctx, q, userEmail))
}

func (s *Store) UpdateMeetingTimes(ctx context.Context, id, userEmail string, start, end time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE meetings SET start_time = $1, end_time = $2
		 WHERE id = $3 AND user_email = $4`,
		start, end, id, userEmail,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMeetingsByTitle removes the user's scheduled meetings whose title
// contains titleQuery, case-insensitively. Returns the deleted titles.
func (s *Store) DeleteMeetingsByTitle(ctx context.Context, userEmail, titleQuery string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM meetings
		 WHERE user_email = $1
		   AND status = 'scheduled'
		   AND title ILIKE '%' || $2 || '%'
		 RETURNING title`, userEmail, titleQuery,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// DeleteMeeting removes a single meeting row owned by the user.
func (s *Store) DeleteMeeting(ctx context.Context, id, userEmail string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM meetings WHERE id = $1 AND user_email = $2`, id, userEmail,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectMeetings(rows pgx.Rows) ([]model.Meeting, error) {
	defer rows.Close()
	var out []model.Meeting
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.StartTime, &m.EndTime,
			&m.Participants, &m.Status, &m.UserEmail, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
