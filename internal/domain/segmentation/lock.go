package segmentation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lease is a held segment lock
type Lease interface {
	Release(ctx context.Context) error
}

// SegmentLocker grants exclusive, expiring leases by key.
// TryAcquire returns ok=false without error when the key is held elsewhere.
type SegmentLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// LockKey is the lease key serializing diff application for one segment
func LockKey(tenantID, segmentID uuid.UUID) string {
	return "segment-recalc:" + tenantID.String() + ":" + segmentID.String()
}
