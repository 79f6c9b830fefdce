package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"testgen-session/internal/domain"
	"testgen-session/internal/infra/memory"
)

func TestTestRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		TestLoader: memory.NewStaticTestLoader(map[int64]domain.Test{
			7: sampleTest(),
		}),
	}
	repo := NewTestRepository(client, loader, time.Minute)

	test, err := repo.GetTest(context.Background(), 7)
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if loader.Calls() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.Calls())
	}
	if !mr.Exists("test:7:definition") {
		t.Fatalf("expected definition cached in redis")
	}
	if ttl := mr.TTL("test:7:definition"); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetTest(context.Background(), 7)
	if err != nil {
		t.Fatalf("get cached test: %v", err)
	}
	if loader.Calls() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.Calls())
	}
	if cached.Questions[0].CorrectAnswer != test.Questions[0].CorrectAnswer || cached.Questions[1].Text != test.Questions[1].Text {
		t.Fatalf("cached test differs: %+v vs %+v", cached, test)
	}

	if err := repo.Invalidate(context.Background(), 7); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetTest(context.Background(), 7)
	if loader.Calls() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.Calls())
	}
}

func TestTestRepositoryIgnoresCorruptEntries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("test:7:definition", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loader := &countingLoader{TestLoader: memory.NewStaticTestLoader(map[int64]domain.Test{7: sampleTest()})}
	repo := NewTestRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetTest(context.Background(), 7); err != nil {
		t.Fatalf("get test: %v", err)
	}
	if loader.Calls() != 1 {
		t.Fatalf("expected fallback to loader, calls=%d", loader.Calls())
	}
}

type countingLoader struct {
	memory.TestLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) GetTest(ctx context.Context, testID int64) (domain.Test, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.TestLoader.GetTest(ctx, testID)
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleTest() domain.Test {
	return domain.Test{
		ID:        7,
		LectureID: 3,
		Questions: []domain.Question{
			{ID: 101, Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: 1},
			{ID: 102, Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: 0},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
