package state

import "testgen-session/internal/domain"

// State is the single source of truth for the active test-taking flow.
type State struct {
	Session    *domain.Session
	Test       *domain.Test
	IsLoading  bool
	Finalizing bool
	Err        error

	// PendingSaves counts answer saves issued but not yet resolved.
	PendingSaves int
	// AppliedSeq is the sequence number of the last adopted answer save.
	AppliedSeq uint64
	// Epoch increases on every Cleared; responses from older epochs are dropped.
	Epoch uint64
}

// Active reports whether both a session and its test are loaded.
func (s State) Active() bool {
	return s.Session != nil && s.Test != nil
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	out := s
	if s.Session != nil {
		sess := s.Session.Clone()
		out.Session = &sess
	}
	if s.Test != nil {
		test := s.Test.Clone()
		out.Test = &test
	}
	return out
}

// Reduce applies msg to s and returns the next state. It never mutates s.
func Reduce(s State, msg Msg) State {
	next := s.Clone()
	switch m := msg.(type) {
	case SessionRequested:
		next.IsLoading = true
		next.Err = nil
	case SessionLoaded:
		next.IsLoading = false
		sess := m.Session.Clone()
		next.Session = &sess
		next.AppliedSeq = 0
	case SessionFailed:
		next.IsLoading = false
		next.Err = m.Err
	case TestRequested:
		next.IsLoading = true
	case TestLoaded:
		next.IsLoading = false
		test := m.Test.Clone()
		next.Test = &test
	case TestFailed:
		next.IsLoading = false
		next.Err = m.Err
	case AnswersSaveRequested:
		next.PendingSaves++
		next.Err = nil
	case AnswersSaved:
		next.PendingSaves = decrement(next.PendingSaves)
		if next.Session == nil || next.Session.Finished || m.Seq <= next.AppliedSeq {
			return next
		}
		next.Session.Answers = append([]domain.Answer(nil), m.Answers...)
		next.AppliedSeq = m.Seq
	case AnswersSaveFailed:
		next.PendingSaves = decrement(next.PendingSaves)
		next.Err = m.Err
	case FinishRequested:
		next.Finalizing = true
		next.Err = nil
	case Finished:
		next.Finalizing = false
		if next.Session != nil {
			sess := m.Session.Clone()
			next.Session = &sess
		}
	case FinishFailed:
		next.Finalizing = false
		next.Err = m.Err
	case Cleared:
		next = State{Epoch: s.Epoch + 1}
	}
	return next
}

func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
