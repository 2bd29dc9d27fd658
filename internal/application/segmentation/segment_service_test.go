package segmentation

import (
	"context"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSegmentServiceFixture() (*SegmentService, *MockSegmentRepository, *MockMembershipRepository, *recordingPublisher) {
	segments := new(MockSegmentRepository)
	memberships := new(MockMembershipRepository)
	publisher := &recordingPublisher{}
	return NewSegmentService(segments, memberships, publisher, zap.NewNop()), segments, memberships, publisher
}

func TestSegmentService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("creates a segment and publishes SegmentCreated", func(t *testing.T) {
		svc, segments, _, publisher := newSegmentServiceFixture()
		segments.On("ExistsByName", mock.Anything, tenantID, "VIP Geneva", uuid.Nil).Return(false, nil)
		segments.On("Save", mock.Anything, mock.AnythingOfType("*segmentation.Segment")).Return(nil)

		lo := decimal.NewFromInt(100)
		resp, err := svc.Create(ctx, tenantID, CreateSegmentRequest{
			Name:  "  VIP Geneva ",
			Color: "#1a2b3c",
			Criteria: CriteriaRequest{
				TotalSpent: &segmentation.DecimalRange{Min: &lo},
				Tags:       []string{"VIP", "VIP"},
				Cities:     []string{"Geneva"},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "VIP Geneva", resp.Name)
		assert.Equal(t, "#1A2B3C", resp.Color)
		assert.Equal(t, []string{"VIP"}, resp.Criteria.Tags)
		assert.True(t, resp.Satisfiable)
		assert.Zero(t, resp.MemberCount)
		assert.Equal(t, []string{segmentation.EventTypeSegmentCreated}, publisher.types())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		svc, segments, _, publisher := newSegmentServiceFixture()
		segments.On("ExistsByName", mock.Anything, tenantID, "VIP", uuid.Nil).Return(true, nil)

		_, err := svc.Create(ctx, tenantID, CreateSegmentRequest{Name: "VIP"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
		segments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		assert.Empty(t, publisher.types())
	})

	t.Run("rejects invalid color before touching storage", func(t *testing.T) {
		svc, segments, _, _ := newSegmentServiceFixture()

		_, err := svc.Create(ctx, tenantID, CreateSegmentRequest{Name: "VIP", Color: "red"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_SEGMENT_COLOR", domainErr.Code)
		segments.AssertNotCalled(t, "ExistsByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepts unsatisfiable ranges and flags them", func(t *testing.T) {
		svc, segments, _, _ := newSegmentServiceFixture()
		segments.On("ExistsByName", mock.Anything, tenantID, "Impossible", uuid.Nil).Return(false, nil)
		segments.On("Save", mock.Anything, mock.Anything).Return(nil)

		lo, hi := int64(5), int64(1)
		resp, err := svc.Create(ctx, tenantID, CreateSegmentRequest{
			Name:     "Impossible",
			Criteria: CriteriaRequest{OrderCount: &segmentation.IntRange{Min: &lo, Max: &hi}},
		})
		require.NoError(t, err)
		assert.False(t, resp.Satisfiable)
	})
}

func TestSegmentService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	existing := func(t *testing.T) *segmentation.Segment {
		s, err := segmentation.NewSegment(tenantID, "Regulars", "", "", segmentation.SegmentCriteria{})
		require.NoError(t, err)
		s.ClearDomainEvents()
		return s
	}

	t.Run("updates criteria and bumps the version", func(t *testing.T) {
		svc, segments, memberships, publisher := newSegmentServiceFixture()
		seg := existing(t)
		segments.On("FindByIDForTenant", mock.Anything, tenantID, seg.ID).Return(seg, nil)
		segments.On("ExistsByName", mock.Anything, tenantID, "Frequent", seg.ID).Return(false, nil)
		segments.On("SaveWithLock", mock.Anything, seg).Return(nil)
		memberships.On("CountBySegment", mock.Anything, tenantID).Return(map[uuid.UUID]int64{seg.ID: 7}, nil)

		lo := int64(3)
		version := 1
		resp, err := svc.Update(ctx, tenantID, seg.ID, UpdateSegmentRequest{
			Name:     "Frequent",
			Criteria: CriteriaRequest{OrderCount: &segmentation.IntRange{Min: &lo}},
			Version:  &version,
		})
		require.NoError(t, err)
		assert.Equal(t, "Frequent", resp.Name)
		assert.Equal(t, 2, resp.Version)
		assert.Equal(t, int64(7), resp.MemberCount)
		assert.Equal(t, []string{segmentation.EventTypeSegmentUpdated}, publisher.types())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		svc, segments, _, _ := newSegmentServiceFixture()
		seg := existing(t)
		segments.On("FindByIDForTenant", mock.Anything, tenantID, seg.ID).Return(seg, nil)

		version := 4
		_, err := svc.Update(ctx, tenantID, seg.ID, UpdateSegmentRequest{Name: "Regulars", Version: &version})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		segments.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("missing segment", func(t *testing.T) {
		svc, segments, _, _ := newSegmentServiceFixture()
		id := uuid.New()
		segments.On("FindByIDForTenant", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Update(ctx, tenantID, id, UpdateSegmentRequest{Name: "X"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestSegmentService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	a, err := segmentation.NewSegment(tenantID, "A", "", "", segmentation.SegmentCriteria{})
	require.NoError(t, err)
	b, err := segmentation.NewSegment(tenantID, "B", "", "", segmentation.SegmentCriteria{})
	require.NoError(t, err)

	t.Run("list carries member counts", func(t *testing.T) {
		svc, segments, memberships, _ := newSegmentServiceFixture()
		filter := shared.DefaultFilter()
		segments.On("FindAllForTenant", mock.Anything, tenantID, filter).Return([]segmentation.Segment{*a, *b}, nil)
		segments.On("CountForTenant", mock.Anything, tenantID, filter).Return(int64(2), nil)
		memberships.On("CountBySegment", mock.Anything, tenantID).Return(map[uuid.UUID]int64{a.ID: 3}, nil)

		items, total, err := svc.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		assert.Equal(t, int64(3), items[0].MemberCount)
		assert.Zero(t, items[1].MemberCount)
	})

	t.Run("delete publishes SegmentDeleted", func(t *testing.T) {
		svc, segments, _, publisher := newSegmentServiceFixture()
		seg, err := segmentation.NewSegment(tenantID, "Gone", "", "", segmentation.SegmentCriteria{})
		require.NoError(t, err)
		seg.ClearDomainEvents()
		segments.On("FindByIDForTenant", mock.Anything, tenantID, seg.ID).Return(seg, nil)
		segments.On("DeleteForTenant", mock.Anything, tenantID, seg.ID).Return(nil)

		require.NoError(t, svc.Delete(ctx, tenantID, seg.ID))
		assert.Equal(t, []string{segmentation.EventTypeSegmentDeleted}, publisher.types())
	})

	t.Run("members of another tenant's segment are not found", func(t *testing.T) {
		svc, segments, memberships, _ := newSegmentServiceFixture()
		id := uuid.New()
		segments.On("FindByIDForTenant", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		_, _, err := svc.ListMembers(ctx, tenantID, id, shared.DefaultFilter())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		memberships.AssertNotCalled(t, "ListMembers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lists members", func(t *testing.T) {
		svc, segments, memberships, _ := newSegmentServiceFixture()
		filter := shared.DefaultFilter()
		added := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
		member := segmentation.Member{CustomerID: uuid.New(), Code: "C-1", Name: "Ada", AddedAt: added}
		segments.On("FindByIDForTenant", mock.Anything, tenantID, a.ID).Return(a, nil)
		memberships.On("ListMembers", mock.Anything, tenantID, a.ID, filter).Return([]segmentation.Member{member}, int64(1), nil)

		items, total, err := svc.ListMembers(ctx, tenantID, a.ID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, []MemberResponse{{CustomerID: member.CustomerID, Code: "C-1", Name: "Ada", AddedAt: added}}, items)
	})
}
