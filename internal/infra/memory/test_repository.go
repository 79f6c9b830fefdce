package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"testgen-session/internal/domain"
)

// TestLoader fetches test definitions from their source (usually the remote catalog).
type TestLoader interface {
	GetTest(ctx context.Context, testID int64) (domain.Test, error)
}

// TestRepository caches test definitions with TTL to avoid refetching them
// every time a student re-enters a test.
type TestRepository struct {
	loader TestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedTest
}

type cachedTest struct {
	test      domain.Test
	expiresAt time.Time
}

func NewTestRepository(loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedTest),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID int64) (domain.Test, error) {
	if test, ok := r.lookup(testID); ok {
		return test, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(testID, 10), func() (interface{}, error) {
		if test, ok := r.lookup(testID); ok {
			return test, nil
		}

		test, err := r.loader.GetTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		r.mu.Lock()
		r.cache[testID] = cachedTest{
			test:      test.Clone(),
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test).Clone(), nil
}

// Invalidate drops a cached test.
func (r *TestRepository) Invalidate(testID int64) {
	r.mu.Lock()
	delete(r.cache, testID)
	r.mu.Unlock()
}

func (r *TestRepository) lookup(testID int64) (domain.Test, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[testID]; ok && entry.expiresAt.After(now) {
		return entry.test.Clone(), true
	}
	return domain.Test{}, false
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTestLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticTestLoader struct {
	tests map[int64]domain.Test
}

func NewStaticTestLoader(tests map[int64]domain.Test) *StaticTestLoader {
	return &StaticTestLoader{tests: tests}
}

func (l *StaticTestLoader) GetTest(_ context.Context, testID int64) (domain.Test, error) {
	if test, ok := l.tests[testID]; ok {
		return test.Clone(), nil
	}
	return domain.Test{}, domain.ErrTestNotFound
}
