package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"testgen-session/internal/app"
	"testgen-session/internal/domain"
)

// Authority is an in-process stand-in for the remote session authority.
// It mirrors the remote rules: one unfinished session per student and test,
// full-replacement answer saves, and score = correct*100/total on finish.
type Authority struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	sessions map[int64]*domain.Session
	tests    map[int64]domain.Test

	creates  int
	finishes int
}

func NewAuthority(tests map[int64]domain.Test) *Authority {
	return NewAuthorityWithClock(tests, time.Now)
}

// NewAuthorityWithClock is test-only for deterministic timestamps.
func NewAuthorityWithClock(tests map[int64]domain.Test, now func() time.Time) *Authority {
	if tests == nil {
		tests = make(map[int64]domain.Test)
	}
	return &Authority{
		now:      now,
		sessions: make(map[int64]*domain.Session),
		tests:    tests,
	}
}

func (a *Authority) GetTest(_ context.Context, testID int64) (domain.Test, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	test, ok := a.tests[testID]
	if !ok {
		return domain.Test{}, domain.ErrTestNotFound
	}
	return test.Clone(), nil
}

func (a *Authority) CurrentSession(_ context.Context, studentID, testID int64) (domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.unfinishedLocked(studentID, testID); s != nil {
		return s.Clone(), nil
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (a *Authority) CreateSession(_ context.Context, req domain.NewSession) (domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unfinishedLocked(req.StudentID, req.TestID) != nil {
		return domain.Session{}, domain.ErrSessionConflict
	}
	a.nextID++
	a.creates++
	s := &domain.Session{
		ID:        a.nextID,
		TestID:    req.TestID,
		StudentID: req.StudentID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Answers:   []domain.Answer{},
	}
	a.sessions[s.ID] = s
	return s.Clone(), nil
}

func (a *Authority) SaveAnswers(_ context.Context, sessionID int64, answers []domain.Answer) ([]domain.Answer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.Finished {
		return nil, domain.ErrSessionFinished
	}
	s.Answers = append([]domain.Answer(nil), answers...)
	return append([]domain.Answer(nil), answers...), nil
}

func (a *Authority) FinishSession(_ context.Context, sessionID int64, answers []domain.Answer) (domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if s.Finished {
		return domain.Session{}, domain.ErrSessionFinished
	}
	a.finishes++
	s.Answers = append([]domain.Answer(nil), answers...)
	s.Score = app.Score(answers)
	s.EndTime = domain.WallClockOf(a.now())
	s.Finished = true
	return s.Clone(), nil
}

func (a *Authority) ListSessions(_ context.Context, studentID, testID int64) ([]domain.Session, error) {
	return a.list(func(s *domain.Session) bool {
		return s.StudentID == studentID && s.TestID == testID
	}), nil
}

func (a *Authority) ListTestSessions(_ context.Context, testID int64) ([]domain.Session, error) {
	return a.list(func(s *domain.Session) bool { return s.TestID == testID }), nil
}

// Creates reports how many sessions were created.
func (a *Authority) Creates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creates
}

// Finishes reports how many sessions were finalized.
func (a *Authority) Finishes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishes
}

func (a *Authority) list(match func(*domain.Session) bool) []domain.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Session, 0)
	for _, s := range a.sessions {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Authority) unfinishedLocked(studentID, testID int64) *domain.Session {
	var found *domain.Session
	for _, s := range a.sessions {
		if s.StudentID == studentID && s.TestID == testID && !s.Finished {
			if found == nil || s.ID < found.ID {
				found = s
			}
		}
	}
	return found
}
