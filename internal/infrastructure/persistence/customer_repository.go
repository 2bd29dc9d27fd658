package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// editableCustomerColumns are written by Save. Statistics columns are owned by
// ApplyStatistics so the two writers never overwrite each other.
var editableCustomerColumns = []string{"code", "name", "email", "status", "city", "tags", "version", "updated_at"}

// GormCustomerRepository implements CustomerRepository, CustomerProfileReader
// and CustomerStatsWriter using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByIDForTenant finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
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

// FindAllForTenant finds customers for a tenant, paged
func (r *GormCustomerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]partner.Customer, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Scopes(tenant.Scope(tenantID))
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ?", like, like)
	}

	sortField := ValidateSortField(filter.OrderBy, CustomerSortFields, "created_at")
	var rows []models.CustomerModel
	if err := query.
		Order(sortField + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	customers := make([]partner.Customer, len(rows))
	for i := range rows {
		customers[i] = *rows[i].ToDomain()
	}
	return customers, nil
}

// CountForTenant counts customers for a tenant
func (r *GormCustomerRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Scopes(tenant.Scope(tenantID)).Count(&count).Error
	return count, err
}

// Save creates the customer or updates its editable columns
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CustomerModel{}).
			Scopes(tenant.Scope(customer.TenantID)).
			Where("id = ?", customer.ID).
			Select(editableCustomerColumns).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		return tx.Create(model).Error
	})
}

// DeleteForTenant deletes a customer within a tenant together with its memberships
func (r *GormCustomerRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.Scope(tenantID)).
			Where("customer_id = ?", id).
			Delete(&models.SegmentMembershipModel{}).Error; err != nil {
			return err
		}
		result := tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.CustomerModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

type customerProfileRow struct {
	ID         uuid.UUID
	TotalSpent decimal.Decimal
	OrderCount int64
	Tags       string
	City       string
}

// LoadProfiles returns the matcher view of every customer of the tenant
func (r *GormCustomerRepository) LoadProfiles(ctx context.Context, tenantID uuid.UUID) ([]segmentation.CustomerProfile, error) {
	var rows []customerProfileRow
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Select("id", "total_spent", "order_count", "tags", "city").
		Scopes(tenant.Scope(tenantID)).
		Order("id").
		Scan(&rows).Error; err != nil {
		return nil, segmentation.StorageError("load customer profiles", err)
	}

	profiles := make([]segmentation.CustomerProfile, len(rows))
	for i, row := range rows {
		profiles[i] = segmentation.CustomerProfile{
			ID:         row.ID,
			TotalSpent: row.TotalSpent,
			OrderCount: row.OrderCount,
			Tags:       models.DecodeTags(row.Tags),
			City:       row.City,
		}
	}
	return profiles, nil
}

type customerStatsRow struct {
	ID         uuid.UUID
	TotalSpent decimal.Decimal
	OrderCount int64
}

// ApplyStatistics writes the given statistics in one transaction and returns
// how many customers actually changed. Ids that are not customers of the
// tenant are skipped. Only the statistics columns are touched, and neither
// version nor updated_at moves, so concurrent edits of the customer survive.
func (r *GormCustomerRepository) ApplyStatistics(ctx context.Context, tenantID uuid.UUID, stats map[uuid.UUID]segmentation.CustomerStats, at time.Time) (int, error) {
	for _, s := range stats {
		if s.TotalSpent.IsNegative() || s.OrderCount < 0 {
			return 0, shared.NewDomainError("INVALID_STATISTICS", "Customer statistics cannot be negative")
		}
	}
	if len(stats) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []customerStatsRow
		if err := tx.Model(&models.CustomerModel{}).
			Select("id", "total_spent", "order_count").
			Scopes(tenant.Scope(tenantID)).
			Scan(&current).Error; err != nil {
			return err
		}

		for _, row := range current {
			next, ok := stats[row.ID]
			if !ok || (next.TotalSpent.Equal(row.TotalSpent) && next.OrderCount == row.OrderCount) {
				continue
			}
			if err := tx.Model(&models.CustomerModel{}).
				Scopes(tenant.Scope(tenantID)).
				Where("id = ?", row.ID).
				UpdateColumns(map[string]any{
					"total_spent":      next.TotalSpent,
					"order_count":      next.OrderCount,
					"stats_updated_at": at,
				}).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, segmentation.StorageError("apply customer statistics", err)
	}
	return updated, nil
}
