package segmentation

import (
	"time"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/google/uuid"
)

// =============================================================================
// Segment DTOs
// =============================================================================

// CriteriaRequest is the wire form of SegmentCriteria.
// Ranges are passed through; list clauses are bounded here and normalized by the domain.
type CriteriaRequest struct {
	TotalSpent *segmentation.DecimalRange `json:"total_spent"`
	OrderCount *segmentation.IntRange     `json:"order_count"`
	Tags       []string                   `json:"tags" binding:"omitempty,max=50,dive,required,max=50"`
	Cities     []string                   `json:"city" binding:"omitempty,max=50,dive,required,max=100"`
}

// ToDomain converts the request into domain criteria
func (c CriteriaRequest) ToDomain() segmentation.SegmentCriteria {
	return segmentation.SegmentCriteria{
		TotalSpent: c.TotalSpent,
		OrderCount: c.OrderCount,
		Tags:       c.Tags,
		Cities:     c.Cities,
	}
}

// CreateSegmentRequest represents a request to create a segment
type CreateSegmentRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Description string          `json:"description" binding:"max=500"`
	Color       string          `json:"color" binding:"omitempty,hexcolor"`
	Criteria    CriteriaRequest `json:"criteria"`
}

// UpdateSegmentRequest replaces a segment's editable fields.
// Version, when set, must equal the stored version.
type UpdateSegmentRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Description string          `json:"description" binding:"max=500"`
	Color       string          `json:"color" binding:"omitempty,hexcolor"`
	Criteria    CriteriaRequest `json:"criteria"`
	Version     *int            `json:"version" binding:"omitempty,min=1"`
}

// SegmentResponse represents a segment in API responses
type SegmentResponse struct {
	ID          uuid.UUID                    `json:"id"`
	TenantID    uuid.UUID                    `json:"tenant_id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description,omitempty"`
	Color       string                       `json:"color"`
	Criteria    segmentation.SegmentCriteria `json:"criteria"`
	Satisfiable bool                         `json:"satisfiable"`
	MemberCount int64                        `json:"member_count"`
	Version     int                          `json:"version"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// MemberResponse represents one customer of a segment
type MemberResponse struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	AddedAt    time.Time `json:"added_at"`
}

// ToSegmentResponse converts a domain segment to a response
func ToSegmentResponse(s *segmentation.Segment, memberCount int64) SegmentResponse {
	return SegmentResponse{
		ID:          s.ID,
		TenantID:    s.TenantID,
		Name:        s.Name,
		Description: s.Description,
		Color:       s.Color,
		Criteria:    s.Criteria,
		Satisfiable: s.Criteria.IsSatisfiable(),
		MemberCount: memberCount,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// ToMemberResponses converts listed members to responses
func ToMemberResponses(members []segmentation.Member) []MemberResponse {
	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = MemberResponse(m)
	}
	return out
}
