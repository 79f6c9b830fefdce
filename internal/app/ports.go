package app

import (
	"context"

	"testgen-session/internal/domain"
)

// Authority is the remote service that owns test sessions and scores them.
type Authority interface {
	CurrentSession(ctx context.Context, studentID, testID int64) (domain.Session, error)
	CreateSession(ctx context.Context, req domain.NewSession) (domain.Session, error)
	SaveAnswers(ctx context.Context, sessionID int64, answers []domain.Answer) ([]domain.Answer, error)
	FinishSession(ctx context.Context, sessionID int64, answers []domain.Answer) (domain.Session, error)
}

// TestCatalog loads test definitions (through a cache or directly).
type TestCatalog interface {
	GetTest(ctx context.Context, testID int64) (domain.Test, error)
}

// HistorySource lists past and current sessions from the authority.
type HistorySource interface {
	ListSessions(ctx context.Context, studentID, testID int64) ([]domain.Session, error)
	ListTestSessions(ctx context.Context, testID int64) ([]domain.Session, error)
}

// ResultArchive keeps a local copy of finalized sessions.
type ResultArchive interface {
	Archive(ctx context.Context, session domain.Session) error
	ListResults(ctx context.Context, studentID, testID int64) ([]domain.Session, error)
}

// EntryGuard serializes resume-or-create for one student and test. The
// returned release function must be called once entry completes.
type EntryGuard interface {
	Acquire(ctx context.Context, studentID, testID int64) (func(), error)
}
