package state

import "testgen-session/internal/domain"

// Msg is a state transition request applied by Reduce.
type Msg interface {
	isMsg()
}

// SessionRequested marks the start of a fetch-or-create round trip.
type SessionRequested struct{}

// SessionLoaded adopts a session returned by the authority.
type SessionLoaded struct{ Session domain.Session }

// SessionFailed records a failed fetch-or-create.
type SessionFailed struct{ Err error }

// TestRequested marks the start of a test definition fetch.
type TestRequested struct{}

// TestLoaded adopts the test definition.
type TestLoaded struct{ Test domain.Test }

// TestFailed records a failed test definition fetch.
type TestFailed struct{ Err error }

// AnswersSaveRequested marks an answer save with sequence Seq as issued.
type AnswersSaveRequested struct{ Seq uint64 }

// AnswersSaved adopts the answer set confirmed by save Seq.
type AnswersSaved struct {
	Seq     uint64
	Answers []domain.Answer
}

// AnswersSaveFailed records a failed save; answers stay as they were.
type AnswersSaveFailed struct {
	Seq uint64
	Err error
}

// FinishRequested marks the start of the finalize round trip.
type FinishRequested struct{}

// Finished adopts the finalized session.
type Finished struct{ Session domain.Session }

// FinishFailed records a failed finalize.
type FinishFailed struct{ Err error }

// Cleared resets the store when the test-taking flow is left.
type Cleared struct{}

func (SessionRequested) isMsg()     {}
func (SessionLoaded) isMsg()        {}
func (SessionFailed) isMsg()        {}
func (TestRequested) isMsg()        {}
func (TestLoaded) isMsg()           {}
func (TestFailed) isMsg()           {}
func (AnswersSaveRequested) isMsg() {}
func (AnswersSaved) isMsg()         {}
func (AnswersSaveFailed) isMsg()    {}
func (FinishRequested) isMsg()      {}
func (Finished) isMsg()             {}
func (FinishFailed) isMsg()         {}
func (Cleared) isMsg()              {}
