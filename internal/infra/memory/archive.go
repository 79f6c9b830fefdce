package memory

import (
	"context"
	"sort"
	"sync"

	"testgen-session/internal/domain"
)

// Archive keeps finalized sessions in memory, keyed by session id.
type Archive struct {
	mu       sync.RWMutex
	sessions map[int64]domain.Session
}

func NewArchive() *Archive {
	return &Archive{sessions: make(map[int64]domain.Session)}
}

func (a *Archive) Archive(_ context.Context, session domain.Session) error {
	if !session.Finished {
		return domain.ErrSessionNotFinished
	}
	a.mu.Lock()
	a.sessions[session.ID] = session.Clone()
	a.mu.Unlock()
	return nil
}

func (a *Archive) ListResults(_ context.Context, studentID, testID int64) ([]domain.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Session, 0)
	for _, s := range a.sessions {
		if s.StudentID == studentID && s.TestID == testID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
