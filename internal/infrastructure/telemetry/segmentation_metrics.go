package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Run outcomes used as the outcome attribute
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// SegmentationMetrics records statistics and segment recalculation runs.
// A nil *SegmentationMetrics records nothing.
type SegmentationMetrics struct {
	runTotal           *Counter
	runDuration        *Histogram
	segmentFailures    *Counter
	segmentsSkipped    *Counter
	membershipsAdded   *Counter
	membershipsRemoved *Counter
	customersUpdated   *Counter
}

// NewSegmentationMetrics creates the segmentation instruments on the meter
func NewSegmentationMetrics(meter metric.Meter) (*SegmentationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SegmentationMetrics{}
	var err error
	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&m.runTotal, "erp_segmentation_runs_total", "Recalculation runs by job and outcome", "{runs}"},
		{&m.segmentFailures, "erp_segment_recalc_failures_total", "Segments that failed to recalculate", "{segments}"},
		{&m.segmentsSkipped, "erp_segment_recalc_skipped_total", "Segments skipped because the run ran out of time", "{segments}"},
		{&m.membershipsAdded, "erp_segment_memberships_added_total", "Memberships inserted by recalculation", "{memberships}"},
		{&m.membershipsRemoved, "erp_segment_memberships_removed_total", "Memberships deleted by recalculation", "{memberships}"},
		{&m.customersUpdated, "erp_customer_stats_updated_total", "Customers whose statistics changed", "{customers}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "erp_segmentation_run_duration_seconds",
		Description: "Duration of recalculation runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records one finished run of the given job
func (m *SegmentationMetrics) RecordRun(ctx context.Context, tenantID uuid.UUID, job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrJob.String(job),
		AttrOutcome.String(outcome),
	}
	m.runTotal.Inc(ctx, attrs...)
	m.runDuration.RecordDuration(ctx, d, attrs...)
}

// RecordSegmentFailure counts one segment that was not brought up to date
func (m *SegmentationMetrics) RecordSegmentFailure(ctx context.Context, tenantID uuid.UUID, code string) {
	if m == nil {
		return
	}
	m.segmentFailures.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrErrorCode.String(code))
}

// RecordSkipped counts segments left unprocessed at the run deadline
func (m *SegmentationMetrics) RecordSkipped(ctx context.Context, tenantID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.segmentsSkipped.Add(ctx, int64(n), AttrTenantID.String(tenantID.String()))
}

// RecordMembershipChanges counts applied membership inserts and deletes
func (m *SegmentationMetrics) RecordMembershipChanges(ctx context.Context, tenantID uuid.UUID, added, removed int) {
	if m == nil {
		return
	}
	tenant := AttrTenantID.String(tenantID.String())
	if added > 0 {
		m.membershipsAdded.Add(ctx, int64(added), tenant)
	}
	if removed > 0 {
		m.membershipsRemoved.Add(ctx, int64(removed), tenant)
	}
}

// RecordCustomersUpdated counts customers whose statistics changed
func (m *SegmentationMetrics) RecordCustomersUpdated(ctx context.Context, tenantID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.customersUpdated.Add(ctx, int64(n), AttrTenantID.String(tenantID.String()))
}
