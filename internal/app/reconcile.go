package app

import (
	"fmt"

	"testgen-session/internal/domain"
)

// Keying selects what Answer.QuestionID refers to.
type Keying int

const (
	// KeyByPosition keys answers by index into Test.Questions. This is the
	// scheme the authority currently expects.
	KeyByPosition Keying = iota
	// KeyByQuestionID keys answers by Question.ID, which survives reordering.
	KeyByQuestionID
)

// ParseKeying maps a config value to a Keying.
func ParseKeying(raw string) (Keying, error) {
	switch raw {
	case "", "position":
		return KeyByPosition, nil
	case "question", "questionId":
		return KeyByQuestionID, nil
	default:
		return KeyByPosition, fmt.Errorf("unknown answer keying %q", raw)
	}
}

func (k Keying) String() string {
	if k == KeyByQuestionID {
		return "question"
	}
	return "position"
}

// KeyAt returns the answer key of the question at index i.
func (k Keying) KeyAt(test domain.Test, i int) int {
	if k == KeyByQuestionID {
		return test.Questions[i].ID
	}
	return i
}

// IndexOf resolves an answer key to a question index.
func (k Keying) IndexOf(test domain.Test, key int) (int, bool) {
	if k == KeyByQuestionID {
		for i, q := range test.Questions {
			if q.ID == key {
				return i, true
			}
		}
		return 0, false
	}
	if key < 0 || key >= len(test.Questions) {
		return 0, false
	}
	return key, true
}

// ValidateSelection checks that key names a question of test and that
// option is one of its options. It returns the question index.
func ValidateSelection(test domain.Test, keying Keying, key, option int) (int, error) {
	idx, ok := keying.IndexOf(test, key)
	if !ok {
		return 0, fmt.Errorf("%w: key %d", domain.ErrQuestionNotFound, key)
	}
	if option < 0 || option >= len(test.Questions[idx].Options) {
		return idx, fmt.Errorf("%w: option %d for question %d", domain.ErrOptionOutOfRange, option, key)
	}
	return idx, nil
}

// UpsertAnswer returns a new answer set with any entry for a.QuestionID
// replaced by a. The input slice is not modified.
func UpsertAnswer(answers []domain.Answer, a domain.Answer) []domain.Answer {
	out := make([]domain.Answer, 0, len(answers)+1)
	for _, existing := range answers {
		if existing.QuestionID != a.QuestionID {
			out = append(out, existing)
		}
	}
	return append(out, a)
}

// FinalizeAnswers produces exactly one answer per question, in question
// order. Existing answers get their correctness recomputed; missing ones
// become the NoSelection sentinel.
func FinalizeAnswers(test domain.Test, answers []domain.Answer, keying Keying) []domain.Answer {
	byKey := make(map[int]domain.Answer, len(answers))
	for _, a := range answers {
		byKey[a.QuestionID] = a
	}

	out := make([]domain.Answer, len(test.Questions))
	for i, q := range test.Questions {
		key := keying.KeyAt(test, i)
		a, ok := byKey[key]
		if !ok {
			out[i] = domain.Answer{QuestionID: key, SelectedOption: domain.NoSelection, IsCorrect: false}
			continue
		}
		a.IsCorrect = a.SelectedOption == q.CorrectAnswer
		out[i] = a
	}
	return out
}

// Score returns the percentage of correct answers, rounded down.
func Score(answers []domain.Answer) int {
	if len(answers) == 0 {
		return 0
	}
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct * 100 / len(answers)
}

// MigrateAnswerKeys rewrites answer keys from one scheme to another using
// test to resolve them. Unresolvable keys are an error.
func MigrateAnswerKeys(test domain.Test, answers []domain.Answer, from, to Keying) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		idx, ok := from.IndexOf(test, a.QuestionID)
		if !ok {
			return nil, fmt.Errorf("migrate answer keys: %w: key %d", domain.ErrQuestionNotFound, a.QuestionID)
		}
		a.QuestionID = to.KeyAt(test, idx)
		out = append(out, a)
	}
	return out, nil
}
