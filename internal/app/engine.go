package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"testgen-session/internal/domain"
	"testgen-session/internal/state"
)

// DefaultWindow is how long a new session stays open.
const DefaultWindow = 30 * time.Minute

// Timer is the part of *time.Timer the countdown needs.
type Timer interface {
	Stop() bool
}

// Engine drives one test-taking flow: resume-or-create, answer saves,
// navigation and finalize. One Engine serves one student view.
type Engine struct {
	authority Authority
	catalog   TestCatalog
	history   HistorySource
	archive   ResultArchive
	guard     EntryGuard

	store *state.Store
	nav   *Navigator

	window          time.Duration
	keying          Keying
	autoFinalize    bool
	finalizeTimeout time.Duration
	now             func() time.Time
	location        *time.Location
	afterFunc       func(time.Duration, func()) Timer

	entering   atomic.Bool
	finalizing atomic.Bool
	seq        atomic.Uint64
	saveMu     sync.Mutex

	mu        sync.Mutex
	countdown Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindow sets the duration of newly created sessions.
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithKeying selects how answers reference questions.
func WithKeying(k Keying) Option {
	return func(e *Engine) { e.keying = k }
}

// WithAutoFinalize enables the countdown that finalizes a session at its
// end time. timeout bounds the finalize call.
func WithAutoFinalize(enabled bool, timeout time.Duration) Option {
	return func(e *Engine) {
		e.autoFinalize = enabled
		if timeout > 0 {
			e.finalizeTimeout = timeout
		}
	}
}

// WithClock overrides the wall clock and the location used to interpret
// timezone-naive session times. Used by tests for deterministic timestamps.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(e *Engine) {
		e.now = now
		if loc != nil {
			e.location = loc
		}
	}
}

// WithTimerFunc overrides how the countdown schedules itself.
func WithTimerFunc(afterFunc func(time.Duration, func()) Timer) Option {
	return func(e *Engine) { e.afterFunc = afterFunc }
}

// WithHistory enables History and TestResults.
func WithHistory(h HistorySource) Option {
	return func(e *Engine) { e.history = h }
}

// WithArchive stores finalized sessions locally.
func WithArchive(a ResultArchive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithEntryGuard serializes concurrent entries for the same student and test.
func WithEntryGuard(g EntryGuard) Option {
	return func(e *Engine) { e.guard = g }
}

func NewEngine(authority Authority, catalog TestCatalog, opts ...Option) *Engine {
	e := &Engine{
		authority:       authority,
		catalog:         catalog,
		store:           state.NewStore(),
		window:          DefaultWindow,
		finalizeTimeout: 15 * time.Second,
		now:             time.Now,
		location:        time.Local,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	e.nav = NewNavigator(e.questionCount)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the state container for read-only consumers.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Navigator returns the question cursor.
func (e *Engine) Navigator() *Navigator {
	return e.nav
}

// Keying reports how answers reference questions.
func (e *Engine) Keying() Keying {
	return e.keying
}

// Enter resumes the student's unfinished session for the test or creates a
// new one, then loads the test definition.
func (e *Engine) Enter(ctx context.Context, studentID, testID int64) (state.State, error) {
	if !e.entering.CompareAndSwap(false, true) {
		return e.store.Snapshot(), domain.ErrRequestInFlight
	}
	defer e.entering.Store(false)

	if snap := e.store.Snapshot(); snap.Session != nil || snap.Test != nil {
		e.Leave()
	}
	epoch := e.store.Epoch()

	session, err := e.resumeOrCreate(ctx, epoch, studentID, testID)
	if err != nil {
		return e.store.Snapshot(), err
	}
	if _, ok := e.store.DispatchAt(epoch, state.SessionLoaded{Session: session}); !ok {
		return e.store.Snapshot(), domain.ErrFlowClosed
	}

	e.store.DispatchAt(epoch, state.TestRequested{})
	test, err := e.catalog.GetTest(ctx, testID)
	if err != nil {
		err = fmt.Errorf("load test %d: %w", testID, err)
		snap, _ := e.store.DispatchAt(epoch, state.TestFailed{Err: err})
		return snap, err
	}
	snap, ok := e.store.DispatchAt(epoch, state.TestLoaded{Test: test})
	if !ok {
		return snap, domain.ErrFlowClosed
	}

	e.startCountdown(ctx, epoch, session)
	return snap, nil
}

func (e *Engine) resumeOrCreate(ctx context.Context, epoch uint64, studentID, testID int64) (domain.Session, error) {
	if e.guard != nil {
		release, err := e.guard.Acquire(ctx, studentID, testID)
		if err != nil {
			e.store.DispatchAt(epoch, state.SessionFailed{Err: err})
			return domain.Session{}, err
		}
		defer release()
	}

	e.store.DispatchAt(epoch, state.SessionRequested{})
	session, err := e.authority.CurrentSession(ctx, studentID, testID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		log.Printf("fetch current session for student %d test %d failed, starting a new one: %v", studentID, testID, err)
	}

	start := domain.WallClockOf(e.now().In(e.location))
	session, err = e.authority.CreateSession(ctx, domain.NewSession{
		TestID:    testID,
		StudentID: studentID,
		StartTime: start,
		EndTime:   start.Add(e.window),
	})
	if err != nil {
		err = fmt.Errorf("start test session: %w", err)
		e.store.DispatchAt(epoch, state.SessionFailed{Err: err})
		return domain.Session{}, err
	}
	return session, nil
}

// Leave clears the active session and test locally. It has no remote effect.
func (e *Engine) Leave() {
	e.stopCountdown()
	e.store.Dispatch(state.Cleared{})
	e.nav.Reset()
}

// RecordAnswer upserts the selection for one question and saves the full
// answer set remotely. The local answers change only after the save succeeds.
func (e *Engine) RecordAnswer(ctx context.Context, questionKey, selectedOption int) (state.State, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := e.store.Snapshot()
	if !snap.Active() {
		return snap, domain.ErrNoActiveSession
	}
	if snap.Session.Finished {
		return snap, domain.ErrSessionFinished
	}
	if snap.Finalizing {
		return snap, domain.ErrFinalizeInFlight
	}
	if _, err := ValidateSelection(*snap.Test, e.keying, questionKey, selectedOption); err != nil {
		return snap, err
	}

	answers := UpsertAnswer(snap.Session.Answers, domain.Answer{
		QuestionID:     questionKey,
		SelectedOption: selectedOption,
		IsCorrect:      false,
	})
	seq := e.seq.Add(1)
	epoch := snap.Epoch
	e.store.DispatchAt(epoch, state.AnswersSaveRequested{Seq: seq})

	saved, err := e.authority.SaveAnswers(ctx, snap.Session.ID, answers)
	if err != nil {
		err = fmt.Errorf("save answer: %w", err)
		next, _ := e.store.DispatchAt(epoch, state.AnswersSaveFailed{Seq: seq, Err: err})
		return next, err
	}
	next, ok := e.store.DispatchAt(epoch, state.AnswersSaved{Seq: seq, Answers: saved})
	if !ok {
		return next, domain.ErrFlowClosed
	}
	return next, nil
}

// AnswerCurrent records selectedOption for the question under the cursor.
func (e *Engine) AnswerCurrent(ctx context.Context, selectedOption int) (state.State, error) {
	snap := e.store.Snapshot()
	if !snap.Active() || len(snap.Test.Questions) == 0 {
		return snap, domain.ErrNoActiveSession
	}
	key := e.keying.KeyAt(*snap.Test, e.nav.Index())
	return e.RecordAnswer(ctx, key, selectedOption)
}

// Complete finalizes the active session: every question gets exactly one
// answer with recomputed correctness, and the authority scores the attempt.
// On failure the local session is left untouched.
func (e *Engine) Complete(ctx context.Context) (domain.Session, error) {
	snap := e.store.Snapshot()
	if !snap.Active() {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	if snap.Session.Finished {
		return domain.Session{}, domain.ErrSessionFinished
	}
	if !e.finalizing.CompareAndSwap(false, true) {
		return domain.Session{}, domain.ErrFinalizeInFlight
	}
	defer e.finalizing.Store(false)

	// Another finalize may have landed between the first read and the CAS.
	snap = e.store.Snapshot()
	if !snap.Active() {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	if snap.Session.Finished {
		return domain.Session{}, domain.ErrSessionFinished
	}
	epoch := snap.Epoch
	if _, ok := e.store.DispatchAt(epoch, state.FinishRequested{}); !ok {
		return domain.Session{}, domain.ErrFlowClosed
	}

	// Wait for an in-flight answer save so the final list includes it.
	e.saveMu.Lock()
	snap = e.store.Snapshot()
	e.saveMu.Unlock()
	if snap.Epoch != epoch || !snap.Active() {
		return domain.Session{}, domain.ErrFlowClosed
	}
	if snap.Session.Finished {
		e.store.DispatchAt(epoch, state.Finished{Session: *snap.Session})
		return domain.Session{}, domain.ErrSessionFinished
	}

	answers := FinalizeAnswers(*snap.Test, snap.Session.Answers, e.keying)
	finished, err := e.authority.FinishSession(ctx, snap.Session.ID, answers)
	if err != nil {
		err = fmt.Errorf("complete test session: %w", err)
		e.store.DispatchAt(epoch, state.FinishFailed{Err: err})
		return domain.Session{}, err
	}

	e.stopCountdown()
	e.store.DispatchAt(epoch, state.Finished{Session: finished})
	e.archiveResult(ctx, finished)
	return finished, nil
}

// Remaining returns the time left before the active session's end time.
func (e *Engine) Remaining() time.Duration {
	snap := e.store.Snapshot()
	if snap.Session == nil || snap.Session.Finished || snap.Session.EndTime.IsZero() {
		return 0
	}
	left := snap.Session.EndTime.In(e.location).Sub(e.now())
	if left < 0 {
		return 0
	}
	return left
}

// History lists the student's sessions for a test, falling back to the
// local archive when the authority cannot be reached.
func (e *Engine) History(ctx context.Context, studentID, testID int64) ([]domain.Session, error) {
	if e.history == nil && e.archive == nil {
		return nil, errors.New("history not configured")
	}
	if e.history != nil {
		sessions, err := e.history.ListSessions(ctx, studentID, testID)
		if err == nil {
			return sessions, nil
		}
		if e.archive == nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		log.Printf("list sessions for student %d test %d failed, using archive: %v", studentID, testID, err)
	}
	sessions, err := e.archive.ListResults(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("list archived results: %w", err)
	}
	return sessions, nil
}

// TestResults lists every session of a test, for an instructor's overview.
func (e *Engine) TestResults(ctx context.Context, testID int64) ([]domain.Session, error) {
	if e.history == nil {
		return nil, errors.New("history not configured")
	}
	sessions, err := e.history.ListTestSessions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list test sessions: %w", err)
	}
	return sessions, nil
}

func (e *Engine) archiveResult(ctx context.Context, session domain.Session) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Archive(context.WithoutCancel(ctx), session); err != nil {
		log.Printf("archive session %d: %v", session.ID, err)
	}
}

func (e *Engine) startCountdown(ctx context.Context, epoch uint64, session domain.Session) {
	if !e.autoFinalize || session.Finished || session.EndTime.IsZero() {
		return
	}
	wait := session.EndTime.In(e.location).Sub(e.now())
	if wait < 0 {
		wait = 0
	}
	base := context.WithoutCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.countdown != nil {
		e.countdown.Stop()
	}
	e.countdown = e.afterFunc(wait, func() { e.expire(base, epoch, session.ID) })
}

func (e *Engine) stopCountdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.countdown != nil {
		e.countdown.Stop()
		e.countdown = nil
	}
}

func (e *Engine) expire(ctx context.Context, epoch uint64, sessionID int64) {
	if e.store.Epoch() != epoch {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.finalizeTimeout)
	defer cancel()
	if _, err := e.Complete(ctx); err != nil {
		log.Printf("auto-finalize session %d: %v", sessionID, err)
		return
	}
	log.Printf("session %d finalized at end time", sessionID)
}

func (e *Engine) questionCount() int {
	snap := e.store.Snapshot()
	if snap.Test == nil {
		return 0
	}
	return len(snap.Test.Questions)
}
