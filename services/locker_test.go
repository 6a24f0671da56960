package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "k")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max holders = %d, want 1", maxInside)
	}
	if len(km.locks) != 0 {
		t.Errorf("idle entries left: %d", len(km.locks))
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release, err := km.Acquire(ctx, "b")
		if err == nil {
			release()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedMutexCancelledWait(t *testing.T) {
	km := NewKeyedMutex()
	release, err := km.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := km.Acquire(ctx, "k"); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}

	release()
	release() // second call is a no-op

	again, err := km.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
	if len(km.locks) != 0 {
		t.Errorf("idle entries left: %d", len(km.locks))
	}
}

func TestToggleLockKey(t *testing.T) {
	if got := toggleLockKey("u", "h", "2026-03-20"); got != "quests:lock:u:h:2026-03-20" {
		t.Errorf("toggleLockKey = %q", got)
	}
}

func newTestRedisLocker(t *testing.T, ttl, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr, client := newTestRedis(t)
	l := NewRedisLocker(client, ttl, wait)
	l.retry = 2 * time.Millisecond
	return l, mr
}

func TestRedisLockerSerializesSameKey(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second, 5*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "k")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(3 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max holders = %d, want 1", maxInside)
	}
	if mr.Exists("k") {
		t.Error("lock key left behind after every holder released")
	}
}

func TestRedisLockerWaitTimeout(t *testing.T) {
	l, _ := newTestRedisLocker(t, 5*time.Second, 30*time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	start := time.Now()
	_, err = l.Acquire(ctx, "k")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("gave up after %v, before the wait deadline", elapsed)
	}

	other, err := l.Acquire(ctx, "other")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
}

func TestRedisLockerCancelledWait(t *testing.T) {
	l, _ := newTestRedisLocker(t, 5*time.Second, 5*time.Second)

	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newTestRedisLocker(t, 100*time.Millisecond, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	mr.FastForward(200 * time.Millisecond)
	if mr.Exists("k") {
		t.Fatal("lock should have expired")
	}

	current, err := l.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	owner, err := mr.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	stale()
	if got, err := mr.Get("k"); err != nil || got != owner {
		t.Errorf("expired holder released the current lock: value %q, err %v", got, err)
	}

	current()
	if mr.Exists("k") {
		t.Error("current holder failed to release its lock")
	}
}

func TestRedisLockerStoreUnavailable(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second, time.Second)
	mr.Close()

	if _, err := l.Acquire(context.Background(), "k"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want store unavailable", err)
	}
}
