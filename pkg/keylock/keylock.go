package keylock

import (
	"context"
	"errors"
	"sync"
)

var ErrEmptyKey = errors.New("keylock key is empty")

// Locker serializes work per key inside one process. Entries are dropped
// once no holder or waiter references them, so the map stays bounded by the
// number of keys in use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Lock is a held key. Release must be called exactly once.
type Lock struct {
	Key string

	locker   *Locker
	entry    *entry
	released sync.Once
}

func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// WithLock runs fn while holding key.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn(ctx)
}

// Acquire blocks until key is free or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return &Lock{Key: key, locker: l, entry: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

func (lk *Lock) Release() {
	lk.released.Do(func() {
		<-lk.entry.sem
		lk.locker.unref(lk.Key, lk.entry)
	})
}

func (l *Locker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 && l.locks[key] == e {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
