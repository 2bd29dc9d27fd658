package segmentation

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecalculatorConfig bounds one recalculation run
type RecalculatorConfig struct {
	EvaluationWorkers int
	// RunTimeout stops segments that have not started yet; zero means no deadline
	RunTimeout        time.Duration
	LockTTL           time.Duration
	LockWait          time.Duration
	LockRetryInterval time.Duration
}

// DefaultRecalculatorConfig returns the settings used when none are configured
func DefaultRecalculatorConfig() RecalculatorConfig {
	return RecalculatorConfig{
		EvaluationWorkers: 4,
		RunTimeout:        10 * time.Minute,
		LockTTL:           2 * time.Minute,
		LockWait:          5 * time.Second,
		LockRetryInterval: 200 * time.Millisecond,
	}
}

func (c RecalculatorConfig) withDefaults() RecalculatorConfig {
	d := DefaultRecalculatorConfig()
	if c.EvaluationWorkers < 1 {
		c.EvaluationWorkers = d.EvaluationWorkers
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.LockWait < 0 {
		c.LockWait = 0
	}
	if c.LockRetryInterval <= 0 {
		c.LockRetryInterval = d.LockRetryInterval
	}
	return c
}

// Recalculator brings every segment's stored membership in line with its criteria
type Recalculator struct {
	segmentRepo    segmentation.SegmentRepository
	membershipRepo segmentation.MembershipRepository
	profiles       segmentation.CustomerProfileReader
	locker         segmentation.SegmentLocker
	eventBus       shared.EventPublisher
	metrics        *telemetry.SegmentationMetrics
	cfg            RecalculatorConfig
	logger         *zap.Logger
	now            func() time.Time
}

// NewRecalculator creates a new Recalculator. metrics may be nil.
func NewRecalculator(
	segmentRepo segmentation.SegmentRepository,
	membershipRepo segmentation.MembershipRepository,
	profiles segmentation.CustomerProfileReader,
	locker segmentation.SegmentLocker,
	eventBus shared.EventPublisher,
	metrics *telemetry.SegmentationMetrics,
	cfg RecalculatorConfig,
	logger *zap.Logger,
) *Recalculator {
	if eventBus == nil {
		eventBus = shared.NoopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalculator{
		segmentRepo:    segmentRepo,
		membershipRepo: membershipRepo,
		profiles:       profiles,
		locker:         locker,
		eventBus:       eventBus,
		metrics:        metrics,
		cfg:            cfg.withDefaults(),
		logger:         logger.Named("segment-recalculator"),
		now:            time.Now,
	}
}

type segmentStatus int

const (
	segmentSkipped segmentStatus = iota
	segmentProcessed
	segmentFailed
)

type segmentOutcome struct {
	status  segmentStatus
	diff    segmentation.MembershipDiff
	failure segmentation.SegmentFailure
}

// RecalculateSegments is the trigger entry point; it runs RecalculateAll
func (r *Recalculator) RecalculateSegments(ctx context.Context, tenantID uuid.UUID) (*segmentation.RecalcReport, error) {
	return r.RecalculateAll(ctx, tenantID)
}

// RecalculateAll recalculates every segment of the tenant against one snapshot
// of customer profiles. A failing segment is reported and does not stop the others.
// The report is returned even when the error is ErrNoSegmentsProcessed.
func (r *Recalculator) RecalculateAll(ctx context.Context, tenantID uuid.UUID) (*segmentation.RecalcReport, error) {
	report := segmentation.NewRecalcReport(tenantID, r.now())
	ctx, span := telemetry.StartSpan(ctx, "segment_recalculator", "recalculate_all",
		telemetry.SpanAttrTenantID, tenantID.String())
	defer span.End()
	log := logger.For(ctx, r.logger).With(zap.String("tenant_id", tenantID.String()))

	segments, err := r.segmentRepo.ListAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, r.abort(ctx, span, report, "load segments", err)
	}
	report.SegmentsTotal = len(segments)
	if len(segments) == 0 {
		report.Duration = time.Since(report.StartedAt)
		r.metrics.RecordRun(ctx, tenantID, JobSegments, telemetry.OutcomeSuccess, report.Duration)
		log.Debug("Tenant has no segments")
		return report, nil
	}

	profiles, err := r.profiles.LoadProfiles(ctx, tenantID)
	if err != nil {
		return nil, r.abort(ctx, span, report, "load customer profiles", err)
	}
	report.CustomersEvaluated = len(profiles)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSegments, len(segments),
		telemetry.SpanAttrCustomers, len(profiles),
	)

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	// Workers never return an error so one failing segment cannot cancel the rest.
	outcomes := make([]segmentOutcome, len(segments))
	var g errgroup.Group
	g.SetLimit(r.cfg.EvaluationWorkers)
	for i := range segments {
		g.Go(func() error {
			outcomes[i] = r.recalculateSegment(runCtx, tenantID, &segments[i], profiles)
			return nil
		})
	}
	_ = g.Wait()

	var events []shared.DomainEvent
	for i, outcome := range outcomes {
		switch outcome.status {
		case segmentProcessed:
			report.SegmentsProcessed++
			report.MembershipsAdded += len(outcome.diff.ToAdd)
			report.MembershipsRemoved += len(outcome.diff.ToRemove)
			if !outcome.diff.IsEmpty() {
				events = append(events, segmentation.NewSegmentMembershipChangedEvent(tenantID, outcome.diff))
			}
		case segmentFailed:
			report.Failures = append(report.Failures, outcome.failure)
			r.metrics.RecordSegmentFailure(ctx, tenantID, outcome.failure.Code)
			log.Warn("Segment recalculation failed",
				zap.String("segment_id", segments[i].ID.String()),
				zap.String("code", outcome.failure.Code),
				zap.String("error", outcome.failure.Message),
			)
		default:
			report.SegmentsSkipped++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	r.metrics.RecordMembershipChanges(ctx, tenantID, report.MembershipsAdded, report.MembershipsRemoved)
	r.metrics.RecordSkipped(ctx, tenantID, report.SegmentsSkipped)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAdded, report.MembershipsAdded,
		telemetry.SpanAttrRemoved, report.MembershipsRemoved,
	)

	if len(events) > 0 {
		if err := r.eventBus.Publish(ctx, events...); err != nil {
			log.Warn("Failed to publish membership events", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("segments_total", report.SegmentsTotal),
		zap.Int("segments_processed", report.SegmentsProcessed),
		zap.Int("segments_failed", report.SegmentsFailed()),
		zap.Int("segments_skipped", report.SegmentsSkipped),
		zap.Int("customers_evaluated", report.CustomersEvaluated),
		zap.Int("memberships_added", report.MembershipsAdded),
		zap.Int("memberships_removed", report.MembershipsRemoved),
		zap.Duration("duration", report.Duration),
	}

	switch {
	case report.SegmentsProcessed == 0:
		r.metrics.RecordRun(ctx, tenantID, JobSegments, telemetry.OutcomeFailed, report.Duration)
		telemetry.RecordError(span, segmentation.ErrNoSegmentsProcessed)
		log.Error("No segment could be recalculated", fields...)
		return report, segmentation.ErrNoSegmentsProcessed
	case !report.Complete():
		r.metrics.RecordRun(ctx, tenantID, JobSegments, telemetry.OutcomePartial, report.Duration)
		log.Warn("Segments partially recalculated", fields...)
	default:
		r.metrics.RecordRun(ctx, tenantID, JobSegments, telemetry.OutcomeSuccess, report.Duration)
		log.Info("Segments recalculated", fields...)
	}
	return report, nil
}

func (r *Recalculator) abort(ctx context.Context, span trace.Span, report *segmentation.RecalcReport, op string, err error) error {
	report.Duration = time.Since(report.StartedAt)
	telemetry.RecordError(span, err)
	r.metrics.RecordRun(ctx, report.TenantID, JobSegments, telemetry.OutcomeFailed, report.Duration)
	logger.For(ctx, r.logger).Error("Segment recalculation aborted",
		zap.String("tenant_id", report.TenantID.String()),
		zap.String("stage", op),
		zap.Error(err),
	)
	if !errors.Is(err, segmentation.ErrStorageUnavailable) {
		err = segmentation.StorageError(op, err)
	}
	return err
}

// recalculateSegment runs Evaluate, Lock, ReadCurrent, Diff and ApplyDiff for one segment.
// Once ApplyDiff begins it runs to completion even if the run deadline passes.
func (r *Recalculator) recalculateSegment(ctx context.Context, tenantID uuid.UUID, segment *segmentation.Segment, profiles []segmentation.CustomerProfile) segmentOutcome {
	if ctx.Err() != nil {
		return segmentOutcome{status: segmentSkipped}
	}

	ctx, span := telemetry.StartSpan(ctx, "segment_recalculator", "recalculate_segment",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSegmentID, segment.ID.String())
	defer span.End()

	target := segmentation.MatchingIDs(profiles, segment.Criteria)

	lease, err := r.acquire(ctx, segmentation.LockKey(tenantID, segment.ID))
	if err != nil {
		if ctx.Err() != nil {
			return segmentOutcome{status: segmentSkipped}
		}
		telemetry.RecordError(span, err)
		return r.failed(segment, err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.For(ctx, r.logger).Warn("Failed to release segment lease",
				zap.String("segment_id", segment.ID.String()),
				zap.Error(err),
			)
		}
	}()

	current, err := r.membershipRepo.CurrentMembers(ctx, tenantID, segment.ID)
	if err != nil {
		if ctx.Err() != nil {
			return segmentOutcome{status: segmentSkipped}
		}
		telemetry.RecordError(span, err)
		return r.failed(segment, err)
	}

	diff := segmentation.ComputeDiff(segment.ID, current, target)
	if !diff.IsEmpty() {
		if err := r.membershipRepo.ApplyDiff(context.WithoutCancel(ctx), tenantID, diff, r.now()); err != nil {
			telemetry.RecordError(span, err)
			return r.failed(segment, err)
		}
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAdded, len(diff.ToAdd),
		telemetry.SpanAttrRemoved, len(diff.ToRemove),
	)
	return segmentOutcome{status: segmentProcessed, diff: diff}
}

// acquire polls the locker until it grants the lease or LockWait elapses
func (r *Recalculator) acquire(ctx context.Context, key string) (segmentation.Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.LockWait)
	defer cancel()

	for {
		lease, ok, err := r.locker.TryAcquire(ctx, key, r.cfg.LockTTL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, segmentation.StorageError("acquire segment lease", err)
		}
		if ok {
			return lease, nil
		}

		timer := time.NewTimer(r.cfg.LockRetryInterval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, segmentation.ErrConcurrentRecalculation
		case <-timer.C:
		}
	}
}

func (r *Recalculator) failed(segment *segmentation.Segment, err error) segmentOutcome {
	code := segmentation.CodeStorageUnavailable
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	return segmentOutcome{
		status: segmentFailed,
		failure: segmentation.SegmentFailure{
			SegmentID:   segment.ID,
			SegmentName: segment.Name,
			Code:        code,
			Message:     err.Error(),
		},
	}
}
