package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"testgen-session/internal/domain"
)

// Archive stores finalized sessions in the session_results table.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) Archive(ctx context.Context, session domain.Session) error {
	if !session.Finished {
		return domain.ErrSessionNotFinished
	}
	answers := session.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO session_results (id, test_id, student_id, start_time, end_time, score, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			score = EXCLUDED.score,
			answers = EXCLUDED.answers,
			archived_at = now()`,
		session.ID, session.TestID, session.StudentID,
		session.StartTime.Naive(), nullableTime(session.EndTime), session.Score, string(raw))
	if err != nil {
		return fmt.Errorf("archive session %d: %w", session.ID, err)
	}
	return nil
}

func (a *Archive) ListResults(ctx context.Context, studentID, testID int64) ([]domain.Session, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, test_id, student_id, start_time, end_time, score, answers
		FROM session_results
		WHERE student_id = $1 AND test_id = $2
		ORDER BY id`, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0)
	for rows.Next() {
		var (
			s     domain.Session
			start time.Time
			end   *time.Time
			raw   []byte
		)
		if err := rows.Scan(&s.ID, &s.TestID, &s.StudentID, &start, &end, &s.Score, &raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		s.StartTime = domain.WallClockOf(start)
		if end != nil {
			s.EndTime = domain.WallClockOf(*end)
		}
		s.Finished = true
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

func nullableTime(w domain.WallClock) *time.Time {
	if w.IsZero() {
		return nil
	}
	t := w.Naive()
	return &t
}
