// Package lock serializes work on a named resource, such as all updates of
// one Telegram user.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("lock: acquire timeout")

// Locker acquires exclusive named locks. The returned release function must
// be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, name string, timeout time.Duration) (release func(), err error)
}

type localEntry struct {
	slot chan struct{}
	refs int
}

// LocalLocker is a process-local Locker.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		e = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[name] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.slot
				l.unref(name, e)
			})
		}, nil
	case <-timer.C:
		l.unref(name, e)
		return nil, ErrTimeout
	case <-ctx.Done():
		l.unref(name, e)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(name string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, name)
	}
}

// size reports the number of tracked names.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
