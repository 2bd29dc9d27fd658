package event

import (
	"context"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes every domain event it receives to the log as JSON
type AuditLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
	eventTypes []string
}

// NewAuditLogHandler creates an audit handler. With no event types it
// subscribes to everything published on the bus.
func NewAuditLogHandler(serializer *EventSerializer, log *zap.Logger, eventTypes ...string) *AuditLogHandler {
	return &AuditLogHandler{
		serializer: serializer,
		logger:     log.Named("domain-events"),
		eventTypes: eventTypes,
	}
}

// EventTypes implements shared.EventHandler
func (h *AuditLogHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}
	logger.For(ctx, h.logger).Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}
