package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quest-progression-system/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out exclusive locks scoped to a key such as user:habit:day.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func toggleLockKey(userID, habitID, day string) string {
	return fmt.Sprintf("quests:lock:%s:%s:%s", userID, habitID, day)
}

// KeyedMutex is an in-process Locker. Entries are reference counted and dropped when idle.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, e)
		return nil, conflictErr("lock.acquire", "request cancelled while waiting for a concurrent toggle", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(key, e)
		})
	}, nil
}

func (k *KeyedMutex) drop(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// RedisLocker is a Locker shared by every replica, built on SET NX PX.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	const op = "lock.acquire"
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, &Error{Kind: KindStoreUnavailable, Op: op, Msg: "lock service unavailable, retry later", Err: err}
		}
		if ok {
			return func() {
				// Background context: release must run even if the request was cancelled.
				if err := releaseScript.Run(context.Background(), r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
					logger.Warn("failed to release toggle lock", "key", key, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, conflictErr(op, "another toggle for this quest and day is in progress, retry", nil)
		}

		select {
		case <-time.After(r.retry):
		case <-ctx.Done():
			return nil, conflictErr(op, "request cancelled while waiting for a concurrent toggle", ctx.Err())
		}
	}
}
