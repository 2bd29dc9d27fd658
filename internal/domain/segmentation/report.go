package segmentation

import (
	"time"

	"github.com/google/uuid"
)

// SegmentFailure describes why one segment was not brought up to date
type SegmentFailure struct {
	SegmentID   uuid.UUID `json:"segment_id"`
	SegmentName string    `json:"segment_name"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
}

// RecalcReport summarizes one segment recalculation run.
// CustomersEvaluated is the number of customer profiles loaded for the run;
// each is evaluated against every processed segment.
type RecalcReport struct {
	TenantID           uuid.UUID        `json:"tenant_id"`
	SegmentsTotal      int              `json:"segments_total"`
	SegmentsProcessed  int              `json:"segments_processed"`
	SegmentsSkipped    int              `json:"segments_skipped"`
	CustomersEvaluated int              `json:"customers_evaluated"`
	MembershipsAdded   int              `json:"memberships_added"`
	MembershipsRemoved int              `json:"memberships_removed"`
	Failures           []SegmentFailure `json:"failures"`
	StartedAt          time.Time        `json:"started_at"`
	Duration           time.Duration    `json:"duration"`
}

// NewRecalcReport starts an empty report for a tenant
func NewRecalcReport(tenantID uuid.UUID, startedAt time.Time) *RecalcReport {
	return &RecalcReport{
		TenantID:  tenantID,
		StartedAt: startedAt,
		Failures:  []SegmentFailure{},
	}
}

// SegmentsFailed is the number of segments that were attempted but failed
func (r *RecalcReport) SegmentsFailed() int {
	return len(r.Failures)
}

// Complete reports whether every segment was processed
func (r *RecalcReport) Complete() bool {
	return r.SegmentsProcessed == r.SegmentsTotal
}

// StatsReport summarizes one customer statistics pass
type StatsReport struct {
	TenantID         uuid.UUID     `json:"tenant_id"`
	CustomersScanned int           `json:"customers_scanned"`
	CustomersUpdated int           `json:"customers_updated"`
	SettledOrders    int64         `json:"settled_orders"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}
