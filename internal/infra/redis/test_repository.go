package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"testgen-session/internal/domain"
)

// TestLoader fetches test definitions from their source (usually the remote catalog).
type TestLoader interface {
	GetTest(ctx context.Context, testID int64) (domain.Test, error)
}

// TestRepository caches test definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON: SET test:{testID}:definition {json} EX ttl
type TestRepository struct {
	client *redis.Client
	loader TestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewTestRepository(client *redis.Client, loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID int64) (domain.Test, error) {
	key := r.key(testID)
	if test, ok := r.cached(ctx, key); ok {
		return test, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if test, ok := r.cached(ctx, key); ok {
			return test, nil
		}

		test, err := r.loader.GetTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		data, err := json.Marshal(test)
		if err != nil {
			return domain.Test{}, err
		}
		if err := r.client.Set(ctx, key, data, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache test %d: %v", testID, err)
		}
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test).Clone(), nil
}

// Invalidate drops a cached test definition.
func (r *TestRepository) Invalidate(ctx context.Context, testID int64) error {
	return r.client.Del(ctx, r.key(testID)).Err()
}

func (r *TestRepository) cached(ctx context.Context, key string) (domain.Test, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached test %s: %v", key, err)
		}
		return domain.Test{}, false
	}
	var test domain.Test
	if err := json.Unmarshal(data, &test); err != nil {
		log.Printf("decode cached test %s: %v", key, err)
		return domain.Test{}, false
	}
	return test, true
}

func (r *TestRepository) key(testID int64) string {
	return "test:" + strconv.FormatInt(testID, 10) + ":definition"
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
