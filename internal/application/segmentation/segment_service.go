package segmentation

import (
	"context"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SegmentService manages segment definitions. It never writes memberships;
// a criteria change takes effect on the next recalculation.
type SegmentService struct {
	segmentRepo    segmentation.SegmentRepository
	membershipRepo segmentation.MembershipRepository
	eventBus       shared.EventPublisher
	logger         *zap.Logger
}

// NewSegmentService creates a new SegmentService
func NewSegmentService(
	segmentRepo segmentation.SegmentRepository,
	membershipRepo segmentation.MembershipRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *SegmentService {
	if eventBus == nil {
		eventBus = shared.NoopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentService{
		segmentRepo:    segmentRepo,
		membershipRepo: membershipRepo,
		eventBus:       eventBus,
		logger:         logger.Named("segment-service"),
	}
}

// Create creates a new segment
func (s *SegmentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSegmentRequest) (*SegmentResponse, error) {
	segment, err := segmentation.NewSegment(tenantID, req.Name, req.Description, req.Color, req.Criteria.ToDomain())
	if err != nil {
		return nil, err
	}

	exists, err := s.segmentRepo.ExistsByName(ctx, tenantID, segment.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Segment with this name already exists")
	}

	if err := s.segmentRepo.Save(ctx, segment); err != nil {
		return nil, err
	}
	s.publish(ctx, segment)

	resp := ToSegmentResponse(segment, 0)
	return &resp, nil
}

// GetByID returns a segment with its current member count
func (s *SegmentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*SegmentResponse, error) {
	segment, err := s.segmentRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.membershipRepo.CountBySegment(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resp := ToSegmentResponse(segment, counts[segment.ID])
	return &resp, nil
}

// List returns a page of segments and the tenant's segment total
func (s *SegmentService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SegmentResponse, int64, error) {
	segments, err := s.segmentRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.segmentRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	counts, err := s.membershipRepo.CountBySegment(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	out := make([]SegmentResponse, len(segments))
	for i := range segments {
		out[i] = ToSegmentResponse(&segments[i], counts[segments[i].ID])
	}
	return out, total, nil
}

// Update replaces a segment's name, description, color and criteria
func (s *SegmentService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateSegmentRequest) (*SegmentResponse, error) {
	segment, err := s.segmentRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != segment.Version {
		return nil, shared.ErrConcurrencyConflict
	}

	if err := segment.Update(req.Name, req.Description, req.Color, req.Criteria.ToDomain()); err != nil {
		return nil, err
	}

	exists, err := s.segmentRepo.ExistsByName(ctx, tenantID, segment.Name, segment.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Segment with this name already exists")
	}

	if err := s.segmentRepo.SaveWithLock(ctx, segment); err != nil {
		return nil, err
	}
	s.publish(ctx, segment)

	counts, err := s.membershipRepo.CountBySegment(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resp := ToSegmentResponse(segment, counts[segment.ID])
	return &resp, nil
}

// Delete removes a segment together with its memberships
func (s *SegmentService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	segment, err := s.segmentRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return err
	}
	segment.MarkDeleted()

	if err := s.segmentRepo.DeleteForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	s.publish(ctx, segment)
	return nil
}

// ListMembers pages through the customers currently in a segment
func (s *SegmentService) ListMembers(ctx context.Context, tenantID, segmentID uuid.UUID, filter shared.Filter) ([]MemberResponse, int64, error) {
	if _, err := s.segmentRepo.FindByIDForTenant(ctx, tenantID, segmentID); err != nil {
		return nil, 0, err
	}
	members, total, err := s.membershipRepo.ListMembers(ctx, tenantID, segmentID, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToMemberResponses(members), total, nil
}

// publish forwards the aggregate's pending events. The write already
// committed, so a failing subscriber is logged rather than returned.
func (s *SegmentService) publish(ctx context.Context, segment *segmentation.Segment) {
	events := segment.GetDomainEvents()
	segment.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish segment events",
			zap.String("segment_id", segment.ID.String()),
			zap.Error(err),
		)
	}
}
