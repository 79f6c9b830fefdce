package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"testgen-session/internal/domain"
)

// releaseScript deletes the lock only if it still holds our token, so a
// lock that expired and was taken by another flow is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EntryGuard is a Redis-backed app.EntryGuard shared by every process that
// drives test sessions, so two tabs of one student cannot both create a
// session. The TTL bounds how long a crashed holder blocks entry.
type EntryGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEntryGuard(client *redis.Client, ttl time.Duration) *EntryGuard {
	return &EntryGuard{client: client, ttl: ttl}
}

func (g *EntryGuard) Acquire(ctx context.Context, studentID, testID int64) (func(), error) {
	key := g.key(studentID, testID)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire entry lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrEntryLocked
	}

	return func() {
		// best-effort release; the TTL cleans up otherwise
		if err := releaseScript.Run(context.Background(), g.client, []string{key}, token).Err(); err != nil {
			log.Printf("release entry lock %s: %v", key, err)
		}
	}, nil
}

func (g *EntryGuard) key(studentID, testID int64) string {
	return fmt.Sprintf("session:entry:%d:%d", studentID, testID)
}
