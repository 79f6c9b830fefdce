package state

import "sync"

// Store holds the State of one test-taking flow and fans out snapshots to
// subscribers after every applied message.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan State]struct{}
}

func NewStore() *Store {
	return &Store{subscribers: make(map[chan State]struct{})}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Epoch returns the current reset generation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Epoch
}

// Dispatch applies msg unconditionally.
func (s *Store) Dispatch(msg Msg) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, msg)
	return s.broadcastLocked()
}

// DispatchAt applies msg only if the store is still in epoch. It reports
// whether msg was applied.
func (s *Store) DispatchAt(epoch uint64, msg Msg) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch != epoch {
		return s.state.Clone(), false
	}
	s.state = Reduce(s.state, msg)
	return s.broadcastLocked(), true
}

// Subscribe returns a channel that receives a snapshot after every applied
// message, starting with the current one. The caller must invoke the
// returned cancel function.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	// The buffer is empty here, so sending under the lock cannot block and
	// keeps the initial snapshot ahead of any broadcast.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.state.Clone()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) broadcastLocked() State {
	snapshot := s.state.Clone()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot.Clone():
		default:
			// Slow subscriber: replace its oldest snapshot with the newest.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot.Clone()
		}
	}
	return snapshot
}
