package segmentation

import (
	"regexp"
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultSegmentColor is used when a segment is created without a color
const DefaultSegmentColor = "#6B7280"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Segment is a named, criteria-defined group of customers.
// Its membership is derived by recalculation and never edited directly.
type Segment struct {
	shared.TenantAggregateRoot
	Name        string
	Description string
	// Color is display-only and never evaluated
	Color    string
	Criteria SegmentCriteria
}

// NewSegment creates a new segment
func NewSegment(tenantID uuid.UUID, name, description, color string, criteria SegmentCriteria) (*Segment, error) {
	name = strings.TrimSpace(name)
	if err := validateSegmentName(name); err != nil {
		return nil, err
	}
	color, err := normalizeColor(color)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}
	criteria, err = criteria.Normalize()
	if err != nil {
		return nil, err
	}

	segment := &Segment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Description:         description,
		Color:               color,
		Criteria:            criteria,
	}
	segment.AddDomainEvent(NewSegmentCreatedEvent(segment))
	return segment, nil
}

// Update replaces the editable fields of the segment.
// Memberships are left as they are until the next recalculation.
func (s *Segment) Update(name, description, color string, criteria SegmentCriteria) error {
	name = strings.TrimSpace(name)
	if err := validateSegmentName(name); err != nil {
		return err
	}
	color, err := normalizeColor(color)
	if err != nil {
		return err
	}
	if err := validateDescription(description); err != nil {
		return err
	}
	criteria, err = criteria.Normalize()
	if err != nil {
		return err
	}

	s.Name = name
	s.Description = description
	s.Color = color
	s.Criteria = criteria
	s.Touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewSegmentUpdatedEvent(s))
	return nil
}

// MarkDeleted records the deletion event; the repository removes the row and its memberships
func (s *Segment) MarkDeleted() {
	s.AddDomainEvent(NewSegmentDeletedEvent(s))
}

// Matches evaluates a single customer against this segment's criteria
func (s *Segment) Matches(customer CustomerProfile) bool {
	return Matches(customer, s.Criteria)
}

func validateSegmentName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_SEGMENT_NAME", "Segment name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewDomainError("INVALID_SEGMENT_NAME", "Segment name cannot exceed 100 characters")
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > 500 {
		return shared.NewDomainError("INVALID_SEGMENT_DESCRIPTION", "Segment description cannot exceed 500 characters")
	}
	return nil
}

func normalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultSegmentColor, nil
	}
	if !colorPattern.MatchString(color) {
		return "", shared.NewDomainError("INVALID_SEGMENT_COLOR", "Segment color must be a hex value like #1A2B3C")
	}
	return strings.ToUpper(color), nil
}
