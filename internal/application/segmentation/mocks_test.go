package segmentation

import (
	"context"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockSegmentRepository is a mock implementation of SegmentRepository
type MockSegmentRepository struct {
	mock.Mock
}

func (m *MockSegmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*segmentation.Segment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*segmentation.Segment), args.Error(1)
}

func (m *MockSegmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]segmentation.Segment, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]segmentation.Segment), args.Error(1)
}

func (m *MockSegmentRepository) ListAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]segmentation.Segment, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]segmentation.Segment), args.Error(1)
}

func (m *MockSegmentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSegmentRepository) ExistsByName(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSegmentRepository) Save(ctx context.Context, segment *segmentation.Segment) error {
	args := m.Called(ctx, segment)
	return args.Error(0)
}

func (m *MockSegmentRepository) SaveWithLock(ctx context.Context, segment *segmentation.Segment) error {
	args := m.Called(ctx, segment)
	return args.Error(0)
}

func (m *MockSegmentRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockMembershipRepository is a mock implementation of MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) CurrentMembers(ctx context.Context, tenantID, segmentID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, segmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockMembershipRepository) ApplyDiff(ctx context.Context, tenantID uuid.UUID, diff segmentation.MembershipDiff, at time.Time) error {
	args := m.Called(ctx, tenantID, diff, at)
	return args.Error(0)
}

func (m *MockMembershipRepository) ListMembers(ctx context.Context, tenantID, segmentID uuid.UUID, filter shared.Filter) ([]segmentation.Member, int64, error) {
	args := m.Called(ctx, tenantID, segmentID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]segmentation.Member), args.Get(1).(int64), args.Error(2)
}

func (m *MockMembershipRepository) CountBySegment(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int64), args.Error(1)
}

// MockProfileReader is a mock implementation of CustomerProfileReader
type MockProfileReader struct {
	mock.Mock
}

func (m *MockProfileReader) LoadProfiles(ctx context.Context, tenantID uuid.UUID) ([]segmentation.CustomerProfile, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]segmentation.CustomerProfile), args.Error(1)
}

// MockStatsWriter is a mock implementation of CustomerStatsWriter
type MockStatsWriter struct {
	mock.Mock
}

func (m *MockStatsWriter) ApplyStatistics(ctx context.Context, tenantID uuid.UUID, stats map[uuid.UUID]segmentation.CustomerStats, at time.Time) (int, error) {
	args := m.Called(ctx, tenantID, stats, at)
	return args.Int(0), args.Error(1)
}

// fakeScanner replays fixed customers and order batches into the visitor
type fakeScanner struct {
	customers []uuid.UUID
	batches   [][]segmentation.SettledOrder
	err       error
}

func (f *fakeScanner) ScanSettledOrders(_ context.Context, _ uuid.UUID, visitor segmentation.SettledOrderVisitor) error {
	visitor.Customers(f.customers)
	for _, batch := range f.batches {
		if err := visitor.Orders(batch); err != nil {
			return err
		}
	}
	return f.err
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
