package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockCustomerRepository creates a GormCustomerRepository with a mocked SQL connection
func newMockCustomerRepository(t *testing.T) (*GormCustomerRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormCustomerRepository(gormDB), mock, mockDB
}

func TestGormCustomerRepository_SaveAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	c := seedCustomer(t, db, tenantID, "c001", "Berlin", "vip", "b2b")

	t.Run("finds customer within its tenant", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "C001", found.Code)
		assert.Equal(t, "Berlin", found.City)
		assert.Equal(t, []string{"b2b", "vip"}, found.Tags)
		assert.True(t, found.TotalSpent.IsZero())
	})

	t.Run("other tenant gets not found", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), c.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save updates editable columns only", func(t *testing.T) {
		_, err := repo.ApplyStatistics(ctx, tenantID, map[uuid.UUID]segmentation.CustomerStats{
			c.ID: {TotalSpent: decimal.RequireFromString("50"), OrderCount: 1},
		}, time.Now())
		require.NoError(t, err)

		// c still carries zero statistics in memory; saving it must not reset them
		require.NoError(t, c.SetCity("Munich"))
		require.NoError(t, repo.Save(ctx, c))

		found, err := repo.FindByIDForTenant(ctx, tenantID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Munich", found.City)
		assert.True(t, decimal.RequireFromString("50").Equal(found.TotalSpent))
		assert.Equal(t, int64(1), found.OrderCount)
	})

	t.Run("lists and counts", func(t *testing.T) {
		seedCustomer(t, db, tenantID, "c002", "Paris")
		seedCustomer(t, db, uuid.New(), "c003", "Paris")

		customers, err := repo.FindAllForTenant(ctx, tenantID, shared.Filter{OrderBy: "code", OrderDir: "asc"})
		require.NoError(t, err)
		require.Len(t, customers, 2)
		assert.Equal(t, "C001", customers[0].Code)

		count, err := repo.CountForTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestGormCustomerRepository_DeleteForTenant(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	c := seedCustomer(t, db, tenantID, "c001", "")
	s := seedSegment(t, db, tenantID, "All", segmentation.SegmentCriteria{})
	require.NoError(t, NewGormMembershipRepository(db).ApplyDiff(ctx, tenantID,
		segmentation.MembershipDiff{SegmentID: s.ID, ToAdd: []uuid.UUID{c.ID}}, time.Now()))

	assert.ErrorIs(t, repo.DeleteForTenant(ctx, uuid.New(), c.ID), shared.ErrNotFound)
	require.NoError(t, repo.DeleteForTenant(ctx, tenantID, c.ID))

	members, err := NewGormMembershipRepository(db).CurrentMembers(ctx, tenantID, s.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestGormCustomerRepository_LoadProfiles(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	a := seedCustomer(t, db, tenantID, "a", "Berlin", "vip")
	b := seedCustomer(t, db, tenantID, "b", "")
	seedCustomer(t, db, uuid.New(), "x", "Berlin")

	_, err := repo.ApplyStatistics(ctx, tenantID, map[uuid.UUID]segmentation.CustomerStats{
		a.ID: {TotalSpent: decimal.RequireFromString("149.99"), OrderCount: 2},
	}, time.Now())
	require.NoError(t, err)

	profiles, err := repo.LoadProfiles(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	byID := map[uuid.UUID]segmentation.CustomerProfile{}
	for _, p := range profiles {
		byID[p.ID] = p
	}
	assert.Equal(t, "149.99", byID[a.ID].TotalSpent.String())
	assert.Equal(t, int64(2), byID[a.ID].OrderCount)
	assert.Equal(t, []string{"vip"}, byID[a.ID].Tags)
	assert.Equal(t, "Berlin", byID[a.ID].City)
	assert.Empty(t, byID[b.ID].Tags)
	assert.True(t, byID[b.ID].TotalSpent.IsZero())
}

func TestGormCustomerRepository_ApplyStatistics(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	a := seedCustomer(t, db, tenantID, "a", "")
	b := seedCustomer(t, db, tenantID, "b", "")
	foreign := seedCustomer(t, db, uuid.New(), "f", "")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stats := map[uuid.UUID]segmentation.CustomerStats{
		a.ID:       {TotalSpent: decimal.RequireFromString("149.99"), OrderCount: 2},
		b.ID:       {TotalSpent: decimal.Zero, OrderCount: 0},
		foreign.ID: {TotalSpent: decimal.RequireFromString("10"), OrderCount: 1},
	}

	t.Run("writes only changed customers of the tenant", func(t *testing.T) {
		updated, err := repo.ApplyStatistics(ctx, tenantID, stats, at)
		require.NoError(t, err)
		assert.Equal(t, 1, updated)

		found, err := repo.FindByIDForTenant(ctx, tenantID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "149.99", found.TotalSpent.String())
		require.NotNil(t, found.StatsUpdatedAt)
		assert.True(t, at.Equal(*found.StatsUpdatedAt))
		assert.Equal(t, a.Version, found.Version)

		other, err := repo.FindByIDForTenant(ctx, foreign.TenantID, foreign.ID)
		require.NoError(t, err)
		assert.True(t, other.TotalSpent.IsZero())
	})

	t.Run("second run with same values changes nothing", func(t *testing.T) {
		updated, err := repo.ApplyStatistics(ctx, tenantID, stats, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, updated)
	})

	t.Run("rejects negative values", func(t *testing.T) {
		_, err := repo.ApplyStatistics(ctx, tenantID, map[uuid.UUID]segmentation.CustomerStats{
			a.ID: {TotalSpent: decimal.RequireFromString("-1")},
		}, at)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATISTICS", domainErr.Code)
	})
}

func TestGormCustomerRepository_StorageFailures(t *testing.T) {
	t.Run("load profiles wraps driver errors", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		driverErr := errors.New("connection reset")
		mock.ExpectQuery(`SELECT .* FROM "customers" WHERE tenant_id = \$1`).
			WillReturnError(driverErr)

		_, err := repo.LoadProfiles(context.Background(), uuid.New())
		assert.ErrorIs(t, err, segmentation.ErrStorageUnavailable)
		assert.ErrorIs(t, err, driverErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("apply statistics rolls back on update failure", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		customerID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT "id","total_spent","order_count" FROM "customers" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "total_spent", "order_count"}).
				AddRow(customerID, "0", 0))
		mock.ExpectExec(`UPDATE "customers" SET`).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := repo.ApplyStatistics(context.Background(), tenantID, map[uuid.UUID]segmentation.CustomerStats{
			customerID: {TotalSpent: decimal.RequireFromString("5"), OrderCount: 1},
		}, time.Now())
		assert.ErrorIs(t, err, segmentation.ErrStorageUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil tenant is rejected before reaching the database", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		_, err := repo.LoadProfiles(context.Background(), uuid.Nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
