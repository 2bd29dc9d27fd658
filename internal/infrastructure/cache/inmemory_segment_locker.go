package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
)

type leaseEntry struct {
	owner     *memoryLease
	expiresAt time.Time
}

// InMemorySegmentLocker grants leases within a single process.
// Suitable for single-instance deployments and tests only.
type InMemorySegmentLocker struct {
	mu     sync.Mutex
	leases map[string]leaseEntry
	now    func() time.Time
}

// NewInMemorySegmentLocker creates an empty in-process locker
func NewInMemorySegmentLocker() *InMemorySegmentLocker {
	return &InMemorySegmentLocker{
		leases: make(map[string]leaseEntry),
		now:    time.Now,
	}
}

// TryAcquire takes the key if it is free or its previous lease expired
func (l *InMemorySegmentLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (segmentation.Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, false, nil
	}

	lease := &memoryLease{locker: l, key: key}
	l.leases[key] = leaseEntry{owner: lease, expiresAt: now.Add(ttl)}
	return lease, true, nil
}

// Held reports how many unexpired leases exist
func (l *InMemorySegmentLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, e := range l.leases {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close is a no-op
func (l *InMemorySegmentLocker) Close() error {
	return nil
}

type memoryLease struct {
	locker *InMemorySegmentLocker
	key    string
}

func (m *memoryLease) Release(context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.leases[m.key]
	if !ok || held.owner != m {
		return ErrLeaseLost
	}
	delete(l.leases, m.key)
	if !l.now().Before(held.expiresAt) {
		return ErrLeaseLost
	}
	return nil
}

var _ segmentation.SegmentLocker = (*InMemorySegmentLocker)(nil)
