package segmentation

import (
	"slices"
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DecimalRange is an inclusive monetary range. A nil bound is unbounded on that side.
type DecimalRange struct {
	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`
}

// Contains reports min <= v <= max for the bounds that are set
func (r *DecimalRange) Contains(v decimal.Decimal) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && v.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// IsSatisfiable is false when both bounds are set and min > max
func (r *DecimalRange) IsSatisfiable() bool {
	return r == nil || r.Min == nil || r.Max == nil || !r.Min.GreaterThan(*r.Max)
}

func (r *DecimalRange) isEmpty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// IntRange is an inclusive count range. A nil bound is unbounded on that side.
type IntRange struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Contains reports min <= v <= max for the bounds that are set
func (r *IntRange) Contains(v int64) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// IsSatisfiable is false when both bounds are set and min > max
func (r *IntRange) IsSatisfiable() bool {
	return r == nil || r.Min == nil || r.Max == nil || *r.Min <= *r.Max
}

func (r *IntRange) isEmpty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// SegmentCriteria is a conjunction of four optional clauses.
// An absent clause is vacuously satisfied, so the zero value matches every customer.
type SegmentCriteria struct {
	TotalSpent *DecimalRange `json:"total_spent,omitempty"`
	OrderCount *IntRange     `json:"order_count,omitempty"`
	// Tags the customer must all carry (subset test, case-sensitive)
	Tags []string `json:"tags,omitempty"`
	// Cities the customer's city must be one of (case-sensitive)
	Cities []string `json:"city,omitempty"`
}

// IsEmpty reports whether no clause constrains anything
func (c SegmentCriteria) IsEmpty() bool {
	return c.TotalSpent.isEmpty() && c.OrderCount.isEmpty() && len(c.Tags) == 0 && len(c.Cities) == 0
}

// IsSatisfiable is false when a range clause has min > max.
// Such criteria are valid data; they simply never match.
func (c SegmentCriteria) IsSatisfiable() bool {
	return c.TotalSpent.IsSatisfiable() && c.OrderCount.IsSatisfiable()
}

// Normalize validates the list clauses and deduplicates them.
// Values are kept byte for byte apart from surrounding whitespace.
func (c SegmentCriteria) Normalize() (SegmentCriteria, error) {
	tags, err := normalizeList(c.Tags, "tags")
	if err != nil {
		return SegmentCriteria{}, err
	}
	cities, err := normalizeList(c.Cities, "city")
	if err != nil {
		return SegmentCriteria{}, err
	}
	out := SegmentCriteria{Tags: tags, Cities: cities}
	if !c.TotalSpent.isEmpty() {
		r := *c.TotalSpent
		out.TotalSpent = &r
	}
	if !c.OrderCount.isEmpty() {
		r := *c.OrderCount
		out.OrderCount = &r
	}
	return out, nil
}

func normalizeList(values []string, clause string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, shared.NewDomainError("INVALID_CRITERIA", "Criteria "+clause+" cannot contain empty values")
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
