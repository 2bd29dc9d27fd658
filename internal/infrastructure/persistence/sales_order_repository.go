package persistence

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultOrderScanBatchSize = 1000

// GormSalesOrderRepository implements SalesOrderRepository and SettledOrderScanner using GORM
type GormSalesOrderRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewGormSalesOrderRepository creates a new GormSalesOrderRepository.
// batchSize bounds how many orders are held in memory per scan step.
func NewGormSalesOrderRepository(db *gorm.DB, batchSize int) *GormSalesOrderRepository {
	if batchSize <= 0 {
		batchSize = defaultOrderScanBatchSize
	}
	return &GormSalesOrderRepository{db: db, batchSize: batchSize}
}

// FindByIDForTenant finds a sales order by ID within a tenant
func (r *GormSalesOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*trade.SalesOrder, error) {
	var model models.SalesOrderModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a sales order
func (r *GormSalesOrderRepository) Save(ctx context.Context, order *trade.SalesOrder) error {
	model := models.SalesOrderModelFromDomain(order)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_amount", "status", "version", "updated_at", "confirmed_at", "delivered_at", "cancelled_at", "cancel_reason"}),
		}).
		Create(model).Error
}

// ScanSettledOrders feeds the visitor the tenant's customer ids, then its
// settled non-guest orders in primary-key batches, all from one read-only
// transaction so totals and the customer set describe the same moment.
func (r *GormSalesOrderRepository) ScanSettledOrders(ctx context.Context, tenantID uuid.UUID, visitor segmentation.SettledOrderVisitor) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customerIDs []uuid.UUID
		if err := tx.Model(&models.CustomerModel{}).
			Scopes(tenant.Scope(tenantID)).
			Pluck("id", &customerIDs).Error; err != nil {
			return err
		}
		visitor.Customers(customerIDs)

		var batch []models.SalesOrderModel
		return tx.Model(&models.SalesOrderModel{}).
			Select("id", "customer_id", "total_amount").
			Scopes(tenant.Scope(tenantID)).
			Where("customer_id IS NOT NULL AND status IN ?", trade.SettledStatuses()).
			FindInBatches(&batch, r.batchSize, func(_ *gorm.DB, _ int) error {
				orders := make([]segmentation.SettledOrder, 0, len(batch))
				for _, m := range batch {
					orders = append(orders, segmentation.SettledOrder{CustomerID: *m.CustomerID, Total: m.TotalAmount})
				}
				return visitor.Orders(orders)
			}).Error
	}, snapshotTxOptions(r.db)...)
	if err != nil {
		return segmentation.StorageError("scan settled orders", err)
	}
	return nil
}
