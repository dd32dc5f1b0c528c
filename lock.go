package ferry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/ferry/errors"
)

// Lock is the host runtime's global execution lock, provided by the
// embedding bridge. The caller holds it when entering Engine.Write or
// Engine.Read; the engine releases it only for wire conversion and always
// re-acquires it before returning.
type Lock interface {
	Acquire()
	Release()
}

// NopLock is a Lock for callers with no host lock.
type NopLock struct{}

func (NopLock) Acquire() {}
func (NopLock) Release() {}

// MutexLock is a Lock backed by a sync.Mutex.
type MutexLock struct {
	mu sync.Mutex
}

// NewMutexLock returns an unlocked MutexLock.
func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Acquire() { l.mu.Lock() }
func (l *MutexLock) Release() { l.mu.Unlock() }

// TryAcquire acquires the lock if it is free.
func (l *MutexLock) TryAcquire() bool { return l.mu.TryLock() }

// CountingLock wraps a Lock and counts transitions.
type CountingLock struct {
	inner    Lock
	acquires atomic.Int64
	releases atomic.Int64
}

// NewCountingLock wraps inner. A nil inner counts without locking.
func NewCountingLock(inner Lock) *CountingLock {
	if inner == nil {
		inner = NopLock{}
	}
	return &CountingLock{inner: inner}
}

func (c *CountingLock) Acquire() {
	c.inner.Acquire()
	c.acquires.Add(1)
}

func (c *CountingLock) Release() {
	c.releases.Add(1)
	c.inner.Release()
}

// Acquires returns the number of Acquire calls.
func (c *CountingLock) Acquires() int64 { return c.acquires.Load() }

// Releases returns the number of Release calls.
func (c *CountingLock) Releases() int64 { return c.releases.Load() }

// unlocked runs fn with l released and re-acquires l before returning,
// however fn exits. A panic inside fn is recovered while the lock is still
// released and returned as a conversion error, so nothing unwinds into code
// that expects the lock to be held.
func unlocked(l Lock, stage errors.Stage, fn func() error) (err error) {
	l.Release()
	defer l.Acquire()
	defer func() {
		if r := recover(); r != nil {
			err = errors.TypeMismatch("convertible value", fmt.Sprintf("panic: %v", r)).At(stage, nil)
		}
	}()
	return fn()
}
