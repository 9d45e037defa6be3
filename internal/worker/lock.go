package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "worker-lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock makes sure only one instance in the cluster runs a job at a time.
// A nil client turns the lock into a no-op for single-instance deployments.
type RunLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRunLock(client redis.Cmdable, name string, ttl time.Duration) *RunLock {
	return &RunLock{client: client, key: lockKeyPrefix + name, ttl: ttl}
}

// Acquire takes the lock with SETNX. ok is false when another instance holds
// it. The returned release is safe to call after the TTL has lapsed.
func (l *RunLock) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	if l == nil || l.client == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// The job's context may already be canceled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			lockReleaseFailed(l.key, err)
		}
	}, true, nil
}
