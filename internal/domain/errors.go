package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no unfinished session exists for a student and test.
	ErrSessionNotFound = errors.New("test session not found")
	// ErrSessionConflict is returned when an unfinished session already exists for the pair.
	ErrSessionConflict = errors.New("unfinished test session already exists")
	// ErrSessionFinished is returned when mutating a session that has been finalized.
	ErrSessionFinished = errors.New("test session already finished")
	// ErrSessionNotFinished is returned when reviewing a session that is still active.
	ErrSessionNotFinished = errors.New("test session not finished")
	// ErrNoActiveSession is returned when an operation needs an active session and test.
	ErrNoActiveSession = errors.New("no active test session")
	// ErrTestNotFound indicates the test definition could not be loaded.
	ErrTestNotFound = errors.New("test not found")
	// ErrQuestionNotFound indicates an answer key does not resolve to a question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionOutOfRange indicates a selected option is not valid for its question.
	ErrOptionOutOfRange = errors.New("option out of range")
	// ErrRequestInFlight is returned when a conflicting request is already pending.
	ErrRequestInFlight = errors.New("request already in flight")
	// ErrFinalizeInFlight is returned when a finalize is already pending.
	ErrFinalizeInFlight = errors.New("finalize already in flight")
	// ErrEntryLocked is returned when another flow is entering the same test for the student.
	ErrEntryLocked = errors.New("test entry in progress elsewhere")
)

// ErrFlowClosed is returned when the test-taking flow was left while a request was pending.
var ErrFlowClosed = errors.New("test-taking flow closed")
