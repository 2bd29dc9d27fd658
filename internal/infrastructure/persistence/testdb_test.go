package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// segmentationSchema mirrors the migrations directory in SQLite types.
// Money is TEXT so decimals round-trip exactly.
var segmentationSchema = []string{
	`CREATE TABLE customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		city TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		total_spent TEXT NOT NULL DEFAULT '0',
		order_count INTEGER NOT NULL DEFAULT 0,
		stats_updated_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE sales_orders (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		order_number TEXT NOT NULL,
		customer_id TEXT REFERENCES customers(id),
		total_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'DRAFT',
		confirmed_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		cancel_reason TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE customer_segments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		color TEXT NOT NULL,
		criteria TEXT NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (tenant_id, name)
	)`,
	`CREATE TABLE customer_segment_members (
		segment_id TEXT NOT NULL REFERENCES customer_segments(id) ON DELETE CASCADE,
		customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		added_at DATETIME NOT NULL,
		PRIMARY KEY (segment_id, customer_id)
	)`,
}

// newTestDB opens a private in-memory SQLite database with the segmentation schema.
// A single connection keeps every statement on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, ddl := range segmentationSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB, tenantID uuid.UUID, code, city string, tags ...string) *partner.Customer {
	t.Helper()
	c, err := partner.NewCustomer(tenantID, code, "Customer "+code)
	require.NoError(t, err)
	require.NoError(t, c.SetCity(city))
	require.NoError(t, c.SetTags(tags))
	require.NoError(t, NewGormCustomerRepository(db).Save(context.Background(), c))
	return c
}

// seedOrder stores an order for the customer (nil for a guest) moved to the given status
func seedOrder(t *testing.T, db *gorm.DB, tenantID uuid.UUID, customerID *uuid.UUID, total string, status trade.OrderStatus) *trade.SalesOrder {
	t.Helper()
	o, err := trade.NewSalesOrder(tenantID, "SO-"+uuid.NewString()[:8], customerID, decimal.RequireFromString(total))
	require.NoError(t, err)

	switch status {
	case trade.OrderStatusDraft:
	case trade.OrderStatusCancelled:
		require.NoError(t, o.Cancel("test"))
	default:
		require.NoError(t, o.Confirm())
		if status == trade.OrderStatusProcessing || status == trade.OrderStatusShipped || status == trade.OrderStatusDelivered {
			require.NoError(t, o.StartProcessing())
		}
		if status == trade.OrderStatusShipped || status == trade.OrderStatusDelivered {
			require.NoError(t, o.Ship())
		}
		if status == trade.OrderStatusDelivered {
			require.NoError(t, o.Deliver())
		}
	}
	require.Equal(t, status, o.Status)
	require.NoError(t, NewGormSalesOrderRepository(db, 0).Save(context.Background(), o))
	return o
}

func seedSegment(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name string, criteria segmentation.SegmentCriteria) *segmentation.Segment {
	t.Helper()
	s, err := segmentation.NewSegment(tenantID, name, "", "", criteria)
	require.NoError(t, err)
	require.NoError(t, NewGormSegmentRepository(db).Save(context.Background(), s))
	return s
}
