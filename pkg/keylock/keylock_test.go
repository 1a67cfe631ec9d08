package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLock_SerializesSameKey(t *testing.T) {
	l := New()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "a->b", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxActive)
	}
	if l.Len() != 0 {
		t.Fatalf("expected entries to be evicted, got %d", l.Len())
	}
}

func TestAcquire_DifferentKeysDoNotBlock(t *testing.T) {
	l := New()
	a, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer a.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("acquire b should not block: %v", err)
	}
	b.Release()
}

func TestAcquire_ContextCanceledWhileWaiting(t *testing.T) {
	l := New()
	held, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	held.Release()
	held.Release()
	if l.Len() != 0 {
		t.Fatalf("expected no entries after release, got %d", l.Len())
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New().Acquire(context.Background(), ""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}
