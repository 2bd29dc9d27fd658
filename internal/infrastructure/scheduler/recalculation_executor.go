package scheduler

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatisticsRunner recalculates customer statistics for a tenant
type StatisticsRunner interface {
	RecalculateCustomerStatistics(ctx context.Context, tenantID uuid.UUID) (*segmentation.StatsReport, error)
}

// SegmentRunner recalculates segment membership for a tenant
type SegmentRunner interface {
	RecalculateSegments(ctx context.Context, tenantID uuid.UUID) (*segmentation.RecalcReport, error)
}

// RecalculationExecutor runs scheduler jobs against the segmentation services
type RecalculationExecutor struct {
	statistics StatisticsRunner
	segments   SegmentRunner
	logger     *zap.Logger
}

// NewRecalculationExecutor creates a new executor
func NewRecalculationExecutor(statistics StatisticsRunner, segments SegmentRunner, logger *zap.Logger) *RecalculationExecutor {
	return &RecalculationExecutor{
		statistics: statistics,
		segments:   segments,
		logger:     logger.Named("recalculation-executor"),
	}
}

// Execute runs the job. A FULL job stops after a failed statistics pass so
// segments are never evaluated against statistics that were not refreshed.
// Segment runs with some failed segments still succeed; the failures are logged.
func (e *RecalculationExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeStatistics:
		return e.runStatistics(ctx, job.TenantID)
	case JobTypeSegments:
		return e.runSegments(ctx, job.TenantID)
	case JobTypeFull:
		if err := e.runStatistics(ctx, job.TenantID); err != nil {
			return err
		}
		return e.runSegments(ctx, job.TenantID)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidJobType, job.Type)
	}
}

func (e *RecalculationExecutor) runStatistics(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := e.statistics.RecalculateCustomerStatistics(ctx, tenantID); err != nil {
		return fmt.Errorf("customer statistics: %w", err)
	}
	return nil
}

func (e *RecalculationExecutor) runSegments(ctx context.Context, tenantID uuid.UUID) error {
	report, err := e.segments.RecalculateSegments(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("segment recalculation: %w", err)
	}
	for _, f := range report.Failures {
		e.logger.Warn("Segment left stale until next run",
			zap.String("tenant_id", tenantID.String()),
			zap.String("segment_id", f.SegmentID.String()),
			zap.String("code", f.Code),
		)
	}
	return nil
}
