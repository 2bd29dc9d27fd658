package segmentation

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// SegmentRepository defines the interface for segment persistence
type SegmentRepository interface {
	// FindByIDForTenant finds a segment by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Segment, error)

	// FindAllForTenant lists segments for a tenant, paged
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Segment, error)

	// ListAllForTenant returns every segment of a tenant, ordered by name
	ListAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]Segment, error)

	// CountForTenant counts segments matching the filter's search
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// ExistsByName reports whether another segment of the tenant already uses the name
	ExistsByName(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error)

	// Save creates or updates a segment
	Save(ctx context.Context, segment *Segment) error

	// SaveWithLock updates a segment only if its stored version is one behind
	SaveWithLock(ctx context.Context, segment *Segment) error

	// DeleteForTenant deletes a segment and all of its memberships
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// MembershipRepository stores the derived customer/segment relation.
// Only recalculation writes to it.
type MembershipRepository interface {
	// CurrentMembers returns the customer ids currently stored for a segment
	CurrentMembers(ctx context.Context, tenantID, segmentID uuid.UUID) ([]uuid.UUID, error)

	// ApplyDiff inserts ToAdd and deletes ToRemove in one transaction
	ApplyDiff(ctx context.Context, tenantID uuid.UUID, diff MembershipDiff, at time.Time) error

	// ListMembers pages through a segment's members
	ListMembers(ctx context.Context, tenantID, segmentID uuid.UUID, filter shared.Filter) ([]Member, int64, error)

	// CountBySegment returns the member count of every segment of the tenant
	CountBySegment(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error)
}

// CustomerProfileReader loads the matcher's view of every customer of a tenant
type CustomerProfileReader interface {
	LoadProfiles(ctx context.Context, tenantID uuid.UUID) ([]CustomerProfile, error)
}

// CustomerStatsWriter persists aggregated statistics onto customer records.
// It touches only the statistics columns and returns how many rows changed.
type CustomerStatsWriter interface {
	ApplyStatistics(ctx context.Context, tenantID uuid.UUID, stats map[uuid.UUID]CustomerStats, at time.Time) (int, error)
}

// SettledOrderVisitor receives the tenant's customer ids first, then settled orders in batches
type SettledOrderVisitor interface {
	Customers(ids []uuid.UUID)
	Orders(batch []SettledOrder) error
}

// SettledOrderScanner reads a tenant's customers and settled customer orders
// from a single point-in-time snapshot.
type SettledOrderScanner interface {
	ScanSettledOrders(ctx context.Context, tenantID uuid.UUID, visitor SettledOrderVisitor) error
}

// TenantLister lists tenants that have work for the scheduler
type TenantLister interface {
	ListTenantsWithSegments(ctx context.Context) ([]uuid.UUID, error)
}
