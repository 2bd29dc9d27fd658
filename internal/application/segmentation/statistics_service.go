package segmentation

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job names used for metrics and scheduling
const (
	JobStatistics = "statistics"
	JobSegments   = "segments"
	JobFull       = "full"
)

// StatisticsService derives each customer's spend statistics from settled orders
// and writes them onto the customer records.
type StatisticsService struct {
	scanner  segmentation.SettledOrderScanner
	writer   segmentation.CustomerStatsWriter
	eventBus shared.EventPublisher
	metrics  *telemetry.SegmentationMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatisticsService creates a new StatisticsService. metrics may be nil.
func NewStatisticsService(
	scanner segmentation.SettledOrderScanner,
	writer segmentation.CustomerStatsWriter,
	eventBus shared.EventPublisher,
	metrics *telemetry.SegmentationMetrics,
	logger *zap.Logger,
) *StatisticsService {
	if eventBus == nil {
		eventBus = shared.NoopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		scanner:  scanner,
		writer:   writer,
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger.Named("customer-statistics"),
		now:      time.Now,
	}
}

// AggregateCustomerStats returns the statistics of every customer of the tenant.
// Customers without settled orders map to zero values. On error no map is returned.
func (s *StatisticsService) AggregateCustomerStats(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]segmentation.CustomerStats, error) {
	acc, err := s.aggregate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return acc.Result(), nil
}

func (s *StatisticsService) aggregate(ctx context.Context, tenantID uuid.UUID) (*segmentation.StatsAccumulator, error) {
	ctx, span := telemetry.StartSpan(ctx, "customer_statistics", "aggregate",
		telemetry.SpanAttrTenantID, tenantID.String())
	defer span.End()

	acc := segmentation.NewStatsAccumulator()
	if err := s.scanner.ScanSettledOrders(ctx, tenantID, acc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomers, len(acc.Result()),
		telemetry.SpanAttrOrderCount, acc.OrdersCounted(),
	)
	if ignored := acc.OrdersIgnored(); ignored > 0 {
		logger.For(ctx, s.logger).Warn("Settled orders reference customers outside the tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("orders", ignored),
		)
	}
	return acc, nil
}

// ApplyStats writes aggregated statistics in one transaction. Running it twice
// with the same input changes nothing the second time.
func (s *StatisticsService) ApplyStats(ctx context.Context, tenantID uuid.UUID, stats map[uuid.UUID]segmentation.CustomerStats) error {
	_, err := s.applyStats(ctx, tenantID, stats)
	return err
}

func (s *StatisticsService) applyStats(ctx context.Context, tenantID uuid.UUID, stats map[uuid.UUID]segmentation.CustomerStats) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "customer_statistics", "apply",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCustomers, len(stats))
	defer span.End()

	updated, err := s.writer.ApplyStatistics(ctx, tenantID, stats, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	s.metrics.RecordCustomersUpdated(ctx, tenantID, updated)
	return updated, nil
}

// RecalculateCustomerStatistics aggregates settled orders and persists the result
func (s *StatisticsService) RecalculateCustomerStatistics(ctx context.Context, tenantID uuid.UUID) (*segmentation.StatsReport, error) {
	started := s.now()
	log := logger.For(ctx, s.logger).With(zap.String("tenant_id", tenantID.String()))

	report := &segmentation.StatsReport{TenantID: tenantID, StartedAt: started}

	acc, err := s.aggregate(ctx, tenantID)
	if err != nil {
		s.metrics.RecordRun(ctx, tenantID, JobStatistics, telemetry.OutcomeFailed, time.Since(started))
		log.Error("Customer statistics aggregation failed", zap.Error(err))
		return nil, err
	}
	stats := acc.Result()
	report.CustomersScanned = len(stats)
	report.SettledOrders = acc.OrdersCounted()

	updated, err := s.applyStats(ctx, tenantID, stats)
	if err != nil {
		s.metrics.RecordRun(ctx, tenantID, JobStatistics, telemetry.OutcomeFailed, time.Since(started))
		log.Error("Customer statistics write failed", zap.Error(err))
		return nil, err
	}
	report.CustomersUpdated = updated
	report.Duration = time.Since(started)

	s.metrics.RecordRun(ctx, tenantID, JobStatistics, telemetry.OutcomeSuccess, report.Duration)
	if err := s.eventBus.Publish(ctx, segmentation.NewCustomerStatsRecalculatedEvent(tenantID, report)); err != nil {
		log.Warn("Failed to publish statistics event", zap.Error(err))
	}
	log.Info("Customer statistics recalculated",
		zap.Int("customers_scanned", report.CustomersScanned),
		zap.Int("customers_updated", report.CustomersUpdated),
		zap.Int64("settled_orders", report.SettledOrders),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
