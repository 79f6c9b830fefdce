package app

import (
	"testgen-session/internal/domain"
)

// Band classifies a score for display.
type Band string

const (
	BandPassed     Band = "passed"
	BandBorderline Band = "borderline"
	BandFailed     Band = "failed"
)

// BandFor returns the band of a percentage score.
func BandFor(score int) Band {
	switch {
	case score >= 70:
		return BandPassed
	case score >= 50:
		return BandBorderline
	default:
		return BandFailed
	}
}

// ReviewItem is one question of a finished session.
type ReviewItem struct {
	Index         int      `json:"index"`
	QuestionID    int      `json:"questionId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Selected      int      `json:"selected"`
	CorrectAnswer int      `json:"correctAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
}

// Review is the read-only result of a finished session.
type Review struct {
	SessionID int64        `json:"sessionId"`
	TestID    int64        `json:"testId"`
	Score     int          `json:"score"`
	Band      Band         `json:"band"`
	Correct   int          `json:"correct"`
	Items     []ReviewItem `json:"items"`
}

// BuildReview pairs a finished session with its test.
func BuildReview(session domain.Session, test domain.Test, keying Keying) (Review, error) {
	if !session.Finished {
		return Review{}, domain.ErrSessionNotFinished
	}
	byKey := make(map[int]domain.Answer, len(session.Answers))
	for _, a := range session.Answers {
		byKey[a.QuestionID] = a
	}

	r := Review{
		SessionID: session.ID,
		TestID:    session.TestID,
		Score:     session.Score,
		Band:      BandFor(session.Score),
		Items:     make([]ReviewItem, 0, len(test.Questions)),
	}
	for i, q := range test.Questions {
		key := keying.KeyAt(test, i)
		item := ReviewItem{
			Index:         i,
			QuestionID:    key,
			Text:          q.Text,
			Options:       append([]string(nil), q.Options...),
			Selected:      domain.NoSelection,
			CorrectAnswer: q.CorrectAnswer,
		}
		if a, ok := byKey[key]; ok {
			item.Selected = a.SelectedOption
			item.IsCorrect = a.IsCorrect
		}
		if item.IsCorrect {
			r.Correct++
		}
		r.Items = append(r.Items, item)
	}
	return r, nil
}

// Review builds the review of the engine's finished session.
func (e *Engine) Review() (Review, error) {
	snap := e.store.Snapshot()
	if !snap.Active() {
		return Review{}, domain.ErrNoActiveSession
	}
	return BuildReview(*snap.Session, *snap.Test, e.keying)
}
