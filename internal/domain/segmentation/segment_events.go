package segmentation

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeSegment = "Segment"

// Event type constants
const (
	EventTypeSegmentCreated           = "SegmentCreated"
	EventTypeSegmentUpdated           = "SegmentUpdated"
	EventTypeSegmentDeleted           = "SegmentDeleted"
	EventTypeSegmentMembershipChanged = "SegmentMembershipChanged"
	EventTypeStatisticsRecalculated   = "CustomerStatisticsRecalculated"
)

// SegmentCreatedEvent is published when a segment is created
type SegmentCreatedEvent struct {
	shared.BaseDomainEvent
	SegmentID uuid.UUID       `json:"segment_id"`
	Name      string          `json:"name"`
	Criteria  SegmentCriteria `json:"criteria"`
}

func NewSegmentCreatedEvent(s *Segment) *SegmentCreatedEvent {
	return &SegmentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSegmentCreated, AggregateTypeSegment, s.ID, s.TenantID),
		SegmentID:       s.ID,
		Name:            s.Name,
		Criteria:        s.Criteria,
	}
}

// SegmentUpdatedEvent is published when a segment's name, color or criteria change
type SegmentUpdatedEvent struct {
	shared.BaseDomainEvent
	SegmentID uuid.UUID       `json:"segment_id"`
	Name      string          `json:"name"`
	Criteria  SegmentCriteria `json:"criteria"`
}

func NewSegmentUpdatedEvent(s *Segment) *SegmentUpdatedEvent {
	return &SegmentUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSegmentUpdated, AggregateTypeSegment, s.ID, s.TenantID),
		SegmentID:       s.ID,
		Name:            s.Name,
		Criteria:        s.Criteria,
	}
}

// SegmentDeletedEvent is published when a segment and its memberships are removed
type SegmentDeletedEvent struct {
	shared.BaseDomainEvent
	SegmentID uuid.UUID `json:"segment_id"`
	Name      string    `json:"name"`
}

func NewSegmentDeletedEvent(s *Segment) *SegmentDeletedEvent {
	return &SegmentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSegmentDeleted, AggregateTypeSegment, s.ID, s.TenantID),
		SegmentID:       s.ID,
		Name:            s.Name,
	}
}

// SegmentMembershipChangedEvent is published after a non-empty diff was applied
type SegmentMembershipChangedEvent struct {
	shared.BaseDomainEvent
	SegmentID uuid.UUID   `json:"segment_id"`
	Added     []uuid.UUID `json:"added"`
	Removed   []uuid.UUID `json:"removed"`
}

func NewSegmentMembershipChangedEvent(tenantID uuid.UUID, diff MembershipDiff) *SegmentMembershipChangedEvent {
	return &SegmentMembershipChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSegmentMembershipChanged, AggregateTypeSegment, diff.SegmentID, tenantID),
		SegmentID:       diff.SegmentID,
		Added:           diff.ToAdd,
		Removed:         diff.ToRemove,
	}
}

// CustomerStatsRecalculatedEvent is published after a statistics pass was written
type CustomerStatsRecalculatedEvent struct {
	shared.BaseDomainEvent
	CustomersScanned int   `json:"customers_scanned"`
	CustomersUpdated int   `json:"customers_updated"`
	SettledOrders    int64 `json:"settled_orders"`
}

func NewCustomerStatsRecalculatedEvent(tenantID uuid.UUID, report *StatsReport) *CustomerStatsRecalculatedEvent {
	return &CustomerStatsRecalculatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStatisticsRecalculated, "Tenant", tenantID, tenantID),
		CustomersScanned: report.CustomersScanned,
		CustomersUpdated: report.CustomersUpdated,
		SettledOrders:    report.SettledOrders,
	}
}
