package app

import (
	"context"
	"sync"
	"time"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// KeyedLocker is an in-process, non-blocking lock keyed by admin id.
type KeyedLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// Compile-time check: KeyedLocker implements domain.AdminLocker.
var _ domain.AdminLocker = (*KeyedLocker)(nil)

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{held: make(map[string]struct{})}
}

// TryLock acquires the lock for adminID without waiting. The returned
// unlock func is safe to call more than once.
func (l *KeyedLocker) TryLock(adminID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[adminID]; busy {
		return nil, false
	}
	l.held[adminID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, adminID)
			l.mu.Unlock()
		})
	}, true
}

type nopObserver struct{}

func (nopObserver) ConversionFinished(context.Context, domain.ConversionStatus, string, time.Duration) {}
func (nopObserver) RollbackFinished(context.Context, bool)                                             {}
func (nopObserver) OrphansReaped(context.Context, int)                                                 {}
