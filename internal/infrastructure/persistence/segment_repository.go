package persistence

import (
	"context"
	"errors"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSegmentRepository implements SegmentRepository and TenantLister using GORM
type GormSegmentRepository struct {
	db *gorm.DB
}

// NewGormSegmentRepository creates a new GormSegmentRepository
func NewGormSegmentRepository(db *gorm.DB) *GormSegmentRepository {
	return &GormSegmentRepository{db: db}
}

// FindByIDForTenant finds a segment by ID within a tenant
func (r *GormSegmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*segmentation.Segment, error) {
	var model models.SegmentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAllForTenant lists segments for a tenant, paged and searchable by name
func (r *GormSegmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]segmentation.Segment, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.SegmentModel{}).Scopes(tenant.Scope(tenantID))
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}

	sortField := ValidateSortField(filter.OrderBy, SegmentSortFields, "name")
	var rows []models.SegmentModel
	if err := query.
		Order(sortField + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return segmentsToDomain(rows)
}

// ListAllForTenant returns every segment of a tenant ordered by name.
// Any stored row that cannot be decoded fails the whole listing.
func (r *GormSegmentRepository) ListAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]segmentation.Segment, error) {
	var rows []models.SegmentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Order("name ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, segmentation.StorageError("list segments", err)
	}
	segments, err := segmentsToDomain(rows)
	if err != nil {
		return nil, segmentation.StorageError("decode segments", err)
	}
	return segments, nil
}

func segmentsToDomain(rows []models.SegmentModel) ([]segmentation.Segment, error) {
	segments := make([]segmentation.Segment, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		segments = append(segments, *s)
	}
	return segments, nil
}

// CountForTenant counts segments for a tenant, applying the filter's name search
func (r *GormSegmentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SegmentModel{}).Scopes(tenant.Scope(tenantID))
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// ExistsByName reports whether a segment of the tenant other than excludeID uses the name
func (r *GormSegmentRepository) ExistsByName(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SegmentModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("name = ?", name)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a segment
func (r *GormSegmentRepository) Save(ctx context.Context, segment *segmentation.Segment) error {
	model := &models.SegmentModel{}
	if err := model.FromDomain(segment); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "color", "criteria", "version", "updated_at"}),
		}).
		Create(model).Error
}

// SaveWithLock updates a segment only when the stored version is the one it was loaded at
func (r *GormSegmentRepository) SaveWithLock(ctx context.Context, segment *segmentation.Segment) error {
	model := &models.SegmentModel{}
	if err := model.FromDomain(segment); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.SegmentModel{}).
		Scopes(tenant.Scope(segment.TenantID)).
		Where("id = ? AND version = ?", segment.ID, segment.Version-1).
		Updates(map[string]any{
			"name":        model.Name,
			"description": model.Description,
			"color":       model.Color,
			"criteria":    model.CriteriaJSON,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// DeleteForTenant deletes a segment and its memberships in one transaction
func (r *GormSegmentRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.Scope(tenantID)).
			Where("segment_id = ?", id).
			Delete(&models.SegmentMembershipModel{}).Error; err != nil {
			return err
		}
		result := tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.SegmentModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListTenantsWithSegments returns every tenant that owns at least one segment
func (r *GormSegmentRepository) ListTenantsWithSegments(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SegmentModel{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, segmentation.StorageError("list tenants with segments", err)
	}
	return tenantIDs, nil
}
