package memory

import (
	"context"
	"fmt"
	"sync"

	"testgen-session/internal/domain"
)

// EntryGuard is an in-process implementation of app.EntryGuard. A second
// Acquire for the same pair fails fast instead of waiting.
type EntryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewEntryGuard() *EntryGuard {
	return &EntryGuard{held: make(map[string]struct{})}
}

func (g *EntryGuard) Acquire(_ context.Context, studentID, testID int64) (func(), error) {
	key := fmt.Sprintf("%d:%d", studentID, testID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, domain.ErrEntryLocked
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
