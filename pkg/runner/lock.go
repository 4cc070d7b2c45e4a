package runner

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RunLocker claims a run before driving it, so several runner processes can
// share one persistence backend without double-driving the same run.
type RunLocker interface {
	// Acquire claims a run. It returns false when another runner holds it.
	Acquire(ctx context.Context, runID string) (bool, error)
	Release(ctx context.Context, runID string) error
}

// NoopLocker is the single-runner default: everything is always claimable.
type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, _ string) (bool, error) { return true, nil }
func (NoopLocker) Release(_ context.Context, _ string) error         { return nil }

const lockTTL = 60 * time.Second

// releaseScript deletes the claim only if this runner still owns it, so an
// expired-and-reclaimed lock is never released by the previous owner.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker claims runs through Redis SET NX with a TTL. The TTL bounds
// how long a crashed runner blocks a run.
type RedisLocker struct {
	client   *redis.Client
	runnerID string
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, addr, runnerID string) (*RedisLocker, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client, runnerID: runnerID}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, runID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(runID), l.runnerID, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for run %s: %w", runID, err)
	}

	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, runID string) error {
	err := releaseScript.Run(ctx, l.client, []string{lockKey(runID)}, l.runnerID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock for run %s: %w", runID, err)
	}

	return nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func lockKey(runID string) string {
	return "operand:run-lock:" + runID
}
