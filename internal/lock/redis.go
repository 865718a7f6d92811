package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTTL     = 10 * time.Second
	defaultWait    = 5 * time.Second
	releaseTimeout = 2 * time.Second
	minBackoff     = 10 * time.Millisecond
	maxBackoff     = 200 * time.Millisecond
)

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(name string) string
}

// RedisLocker implements Locker across processes with SETNX + TTL. Each key
// is owned by a random token and only released while the token still matches.
type RedisLocker struct {
	client redisStore
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client redisStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, wait: defaultWait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	owner := uuid.NewString()
	held := make([]string, 0, len(keys))

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_, _ = l.client.DelIfValue(rctx, held[i], owner)
		}
	}

	for _, key := range normalize(keys) {
		redisKey := l.client.LockKey(key)
		if err := l.acquire(ctx, redisKey, owner); err != nil {
			release()
			return nil, err
		}
		held = append(held, redisKey)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, owner string) error {
	backoff := minBackoff
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return ErrTimeout
			}
			return fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
