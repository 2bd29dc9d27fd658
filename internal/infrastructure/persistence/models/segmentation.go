package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/google/uuid"
)

// SegmentModel is the persistence model for the Segment aggregate root.
type SegmentModel struct {
	TenantAggregateModel
	Name         string `gorm:"type:varchar(100);not null"`
	Description  string `gorm:"type:varchar(500)"`
	Color        string `gorm:"type:varchar(7);not null"`
	CriteriaJSON string `gorm:"column:criteria;type:jsonb;not null;default:'{}'"`
}

// TableName returns the table name for GORM
func (SegmentModel) TableName() string {
	return "customer_segments"
}

// ToDomain converts the persistence model to a domain Segment.
// A criteria document that cannot be parsed is an error rather than an
// empty criteria, which would silently match every customer.
func (m *SegmentModel) ToDomain() (*segmentation.Segment, error) {
	var criteria segmentation.SegmentCriteria
	if m.CriteriaJSON != "" {
		if err := json.Unmarshal([]byte(m.CriteriaJSON), &criteria); err != nil {
			return nil, fmt.Errorf("decode criteria of segment %s: %w", m.ID, err)
		}
	}
	return &segmentation.Segment{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Name:                m.Name,
		Description:         m.Description,
		Color:               m.Color,
		Criteria:            criteria,
	}, nil
}

// FromDomain populates the persistence model from a domain Segment.
func (m *SegmentModel) FromDomain(s *segmentation.Segment) error {
	raw, err := json.Marshal(s.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria of segment %s: %w", s.ID, err)
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.Name = s.Name
	m.Description = s.Description
	m.Color = s.Color
	m.CriteriaJSON = string(raw)
	return nil
}

// SegmentMembershipModel is one derived (segment, customer) pair.
type SegmentMembershipModel struct {
	SegmentID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	AddedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SegmentMembershipModel) TableName() string {
	return "customer_segment_members"
}
