package persistence

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// membershipWriteChunk bounds the number of bind parameters per statement
const membershipWriteChunk = 500

// GormMembershipRepository implements MembershipRepository using GORM
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// CurrentMembers returns the stored member ids of a segment
func (r *GormMembershipRepository) CurrentMembers(ctx context.Context, tenantID, segmentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SegmentMembershipModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("segment_id = ?", segmentID).
		Pluck("customer_id", &ids).Error; err != nil {
		return nil, segmentation.StorageError("load segment members", err)
	}
	return ids, nil
}

// ApplyDiff writes a membership diff atomically. Inserting an existing pair
// and deleting a missing one are both no-ops, so replaying a diff is safe.
func (r *GormMembershipRepository) ApplyDiff(ctx context.Context, tenantID uuid.UUID, diff segmentation.MembershipDiff, at time.Time) error {
	if diff.IsEmpty() {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(diff.ToAdd) > 0 {
			rows := make([]models.SegmentMembershipModel, len(diff.ToAdd))
			for i, customerID := range diff.ToAdd {
				rows[i] = models.SegmentMembershipModel{
					SegmentID:  diff.SegmentID,
					CustomerID: customerID,
					TenantID:   tenantID,
					AddedAt:    at,
				}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(rows, membershipWriteChunk).Error; err != nil {
				return err
			}
		}
		for _, chunk := range chunkIDs(diff.ToRemove, membershipWriteChunk) {
			if err := tx.Scopes(tenant.Scope(tenantID)).
				Where("segment_id = ? AND customer_id IN ?", diff.SegmentID, chunk).
				Delete(&models.SegmentMembershipModel{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return segmentation.StorageError("apply membership diff", err)
	}
	return nil
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

type memberRow struct {
	CustomerID uuid.UUID
	Code       string
	Name       string
	AddedAt    time.Time
}

// ListMembers pages through a segment's members joined with their customer record
func (r *GormMembershipRepository) ListMembers(ctx context.Context, tenantID, segmentID uuid.UUID, filter shared.Filter) ([]segmentation.Member, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).
		Table("customer_segment_members AS m").
		Joins("JOIN customers AS c ON c.id = m.customer_id").
		Scopes(tenant.ScopeColumn("m.tenant_id", tenantID)).
		Where("m.segment_id = ?", segmentID)
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("c.name LIKE ? OR c.code LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, MemberSortFields, "added_at")
	var rows []memberRow
	if err := query.
		Select("m.customer_id", "c.code", "c.name", "m.added_at").
		Order(sortField + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	members := make([]segmentation.Member, len(rows))
	for i, row := range rows {
		members[i] = segmentation.Member(row)
	}
	return members, total, nil
}

type segmentCountRow struct {
	SegmentID uuid.UUID
	Members   int64
}

// CountBySegment returns member counts keyed by segment id. Empty segments are absent.
func (r *GormMembershipRepository) CountBySegment(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []segmentCountRow
	if err := r.db.WithContext(ctx).
		Model(&models.SegmentMembershipModel{}).
		Select("segment_id, COUNT(*) AS members").
		Scopes(tenant.Scope(tenantID)).
		Group("segment_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.SegmentID] = row.Members
	}
	return counts, nil
}
