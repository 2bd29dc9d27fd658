package segmentation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSegment(t *testing.T, tenantID uuid.UUID, name string, criteria segmentation.SegmentCriteria) segmentation.Segment {
	t.Helper()
	s, err := segmentation.NewSegment(tenantID, name, "", "", criteria)
	require.NoError(t, err)
	s.ClearDomainEvents()
	return *s
}

func spentAtLeast(v string) segmentation.SegmentCriteria {
	lo := decimal.RequireFromString(v)
	return segmentation.SegmentCriteria{TotalSpent: &segmentation.DecimalRange{Min: &lo}}
}

func profile(spent string, orders int64, city string, tags ...string) segmentation.CustomerProfile {
	return segmentation.CustomerProfile{
		ID:         uuid.New(),
		TotalSpent: decimal.RequireFromString(spent),
		OrderCount: orders,
		City:       city,
		Tags:       tags,
	}
}

type recalculatorFixture struct {
	segments    *MockSegmentRepository
	memberships *MockMembershipRepository
	profiles    *MockProfileReader
	locker      *cache.InMemorySegmentLocker
	publisher   *recordingPublisher
}

func newRecalculatorFixture() *recalculatorFixture {
	return &recalculatorFixture{
		segments:    new(MockSegmentRepository),
		memberships: new(MockMembershipRepository),
		profiles:    new(MockProfileReader),
		locker:      cache.NewInMemorySegmentLocker(),
		publisher:   &recordingPublisher{},
	}
}

func (f *recalculatorFixture) recalculator(cfg RecalculatorConfig) *Recalculator {
	return NewRecalculator(f.segments, f.memberships, f.profiles, f.locker, f.publisher, nil, cfg, zap.NewNop())
}

func fastLockConfig() RecalculatorConfig {
	cfg := DefaultRecalculatorConfig()
	cfg.LockWait = 30 * time.Millisecond
	cfg.LockRetryInterval = 5 * time.Millisecond
	return cfg
}

func TestRecalculator_RecalculateAll(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("brings membership in line with criteria", func(t *testing.T) {
		f := newRecalculatorFixture()
		big := profile("200", 3, "Geneva", "VIP")
		small := profile("50", 1, "Bern")
		bigger := profile("300", 5, "")
		seg := newTestSegment(t, tenantID, "High spenders", spentAtLeast("100"))

		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{seg}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{big, small, bigger}, nil)
		f.memberships.On("CurrentMembers", mock.Anything, tenantID, seg.ID).Return([]uuid.UUID{small.ID, bigger.ID}, nil)
		expected := segmentation.MembershipDiff{SegmentID: seg.ID, ToAdd: []uuid.UUID{big.ID}, ToRemove: []uuid.UUID{small.ID}}
		f.memberships.On("ApplyDiff", mock.Anything, tenantID, expected, mock.Anything).Return(nil)

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		require.NoError(t, err)

		assert.Equal(t, 1, report.SegmentsTotal)
		assert.Equal(t, 1, report.SegmentsProcessed)
		assert.Equal(t, 3, report.CustomersEvaluated)
		assert.Equal(t, 1, report.MembershipsAdded)
		assert.Equal(t, 1, report.MembershipsRemoved)
		assert.Empty(t, report.Failures)
		assert.True(t, report.Complete())
		assert.Equal(t, []string{segmentation.EventTypeSegmentMembershipChanged}, f.publisher.types())
		assert.Zero(t, f.locker.Held())
		f.memberships.AssertExpectations(t)
	})

	t.Run("replay with unchanged inputs writes nothing", func(t *testing.T) {
		f := newRecalculatorFixture()
		big := profile("200", 3, "Geneva")
		seg := newTestSegment(t, tenantID, "High spenders", spentAtLeast("100"))

		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{seg}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{big}, nil)
		f.memberships.On("CurrentMembers", mock.Anything, tenantID, seg.ID).Return([]uuid.UUID{big.ID}, nil)

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		require.NoError(t, err)

		assert.Equal(t, 1, report.SegmentsProcessed)
		assert.Zero(t, report.MembershipsAdded)
		assert.Zero(t, report.MembershipsRemoved)
		assert.Empty(t, f.publisher.types())
		f.memberships.AssertNotCalled(t, "ApplyDiff", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("one failing segment does not stop the others", func(t *testing.T) {
		f := newRecalculatorFixture()
		c := profile("150", 2, "Geneva")
		broken := newTestSegment(t, tenantID, "Broken", segmentation.SegmentCriteria{})
		healthy := newTestSegment(t, tenantID, "Healthy", segmentation.SegmentCriteria{})

		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{broken, healthy}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{c}, nil)
		f.memberships.On("CurrentMembers", mock.Anything, tenantID, mock.Anything).Return([]uuid.UUID{}, nil)
		f.memberships.On("ApplyDiff", mock.Anything, tenantID, mock.MatchedBy(func(d segmentation.MembershipDiff) bool {
			return d.SegmentID == broken.ID
		}), mock.Anything).Return(segmentation.StorageError("apply membership diff", errors.New("connection reset")))
		f.memberships.On("ApplyDiff", mock.Anything, tenantID, mock.MatchedBy(func(d segmentation.MembershipDiff) bool {
			return d.SegmentID == healthy.ID
		}), mock.Anything).Return(nil)

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		require.NoError(t, err)

		assert.Equal(t, 1, report.SegmentsProcessed)
		assert.Equal(t, 1, report.MembershipsAdded)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, broken.ID, report.Failures[0].SegmentID)
		assert.Equal(t, "Broken", report.Failures[0].SegmentName)
		assert.Equal(t, segmentation.CodeStorageUnavailable, report.Failures[0].Code)
		assert.Contains(t, report.Failures[0].Message, "connection reset")
		assert.False(t, report.Complete())
		assert.Equal(t, []string{segmentation.EventTypeSegmentMembershipChanged}, f.publisher.types())
	})

	t.Run("held lease is reported as a concurrency conflict", func(t *testing.T) {
		f := newRecalculatorFixture()
		seg := newTestSegment(t, tenantID, "Contended", segmentation.SegmentCriteria{})
		held, ok, err := f.locker.TryAcquire(ctx, segmentation.LockKey(tenantID, seg.ID), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		defer func() { _ = held.Release(ctx) }()

		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{seg}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{}, nil)

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		assert.ErrorIs(t, err, segmentation.ErrNoSegmentsProcessed)
		require.NotNil(t, report)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, segmentation.CodeConcurrentRecalculation, report.Failures[0].Code)
		assert.Zero(t, report.SegmentsProcessed)
		f.memberships.AssertNotCalled(t, "CurrentMembers", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("segment load failure aborts the run", func(t *testing.T) {
		f := newRecalculatorFixture()
		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return(nil, errors.New("dial tcp: refused"))

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, segmentation.ErrStorageUnavailable)
		f.profiles.AssertNotCalled(t, "LoadProfiles", mock.Anything, mock.Anything)
	})

	t.Run("profile load failure aborts the run", func(t *testing.T) {
		f := newRecalculatorFixture()
		seg := newTestSegment(t, tenantID, "Any", segmentation.SegmentCriteria{})
		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{seg}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return(nil, segmentation.StorageError("load customer profiles", errors.New("timeout")))

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, segmentation.ErrStorageUnavailable)
	})

	t.Run("tenant without segments succeeds without loading customers", func(t *testing.T) {
		f := newRecalculatorFixture()
		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{}, nil)

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(ctx, tenantID)
		require.NoError(t, err)
		assert.Zero(t, report.SegmentsTotal)
		assert.True(t, report.Complete())
		f.profiles.AssertNotCalled(t, "LoadProfiles", mock.Anything, mock.Anything)
	})

	t.Run("run deadline skips segments that have not started", func(t *testing.T) {
		f := newRecalculatorFixture()
		slow := newTestSegment(t, tenantID, "Slow", segmentation.SegmentCriteria{Tags: []string{"nobody"}})
		late := newTestSegment(t, tenantID, "Late", segmentation.SegmentCriteria{Tags: []string{"nobody"}})

		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{slow, late}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{}, nil)
		f.memberships.On("CurrentMembers", mock.Anything, tenantID, slow.ID).
			After(120*time.Millisecond).Return([]uuid.UUID{}, nil)

		cfg := fastLockConfig()
		cfg.EvaluationWorkers = 1
		cfg.RunTimeout = 40 * time.Millisecond

		report, err := f.recalculator(cfg).RecalculateAll(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, report.SegmentsProcessed)
		assert.Equal(t, 1, report.SegmentsSkipped)
		assert.Empty(t, report.Failures)
		f.memberships.AssertNotCalled(t, "CurrentMembers", mock.Anything, tenantID, late.ID)
	})

	t.Run("cancelled caller skips every segment", func(t *testing.T) {
		f := newRecalculatorFixture()
		seg := newTestSegment(t, tenantID, "Any", segmentation.SegmentCriteria{})
		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return([]segmentation.Segment{seg}, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{}, nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		report, err := f.recalculator(fastLockConfig()).RecalculateAll(cancelled, tenantID)
		assert.ErrorIs(t, err, segmentation.ErrNoSegmentsProcessed)
		require.NotNil(t, report)
		assert.Equal(t, 1, report.SegmentsSkipped)
		assert.Empty(t, report.Failures)
	})

	t.Run("bounded workers process every segment", func(t *testing.T) {
		f := newRecalculatorFixture()
		c := profile("10", 1, "Geneva")
		var segments []segmentation.Segment
		for i := range 10 {
			segments = append(segments, newTestSegment(t, tenantID, fmt.Sprintf("Segment %02d", i), segmentation.SegmentCriteria{}))
		}
		f.segments.On("ListAllForTenant", mock.Anything, tenantID).Return(segments, nil)
		f.profiles.On("LoadProfiles", mock.Anything, tenantID).Return([]segmentation.CustomerProfile{c}, nil)
		f.memberships.On("CurrentMembers", mock.Anything, tenantID, mock.Anything).Return([]uuid.UUID{}, nil)
		f.memberships.On("ApplyDiff", mock.Anything, tenantID, mock.Anything, mock.Anything).Return(nil)

		cfg := fastLockConfig()
		cfg.EvaluationWorkers = 3

		report, err := f.recalculator(cfg).RecalculateSegments(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 10, report.SegmentsProcessed)
		assert.Equal(t, 10, report.MembershipsAdded)
		assert.Len(t, f.publisher.types(), 10)
		assert.Zero(t, f.locker.Held())
	})
}

func TestRecalculatorConfig_WithDefaults(t *testing.T) {
	cfg := RecalculatorConfig{LockWait: -time.Second}.withDefaults()
	assert.Equal(t, 4, cfg.EvaluationWorkers)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)
	assert.Zero(t, cfg.LockWait)
	assert.Equal(t, 200*time.Millisecond, cfg.LockRetryInterval)
	assert.Zero(t, cfg.RunTimeout)
}
