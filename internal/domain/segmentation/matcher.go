package segmentation

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerProfile is the read-only view of a customer the matcher evaluates.
// An empty City means the customer has no city.
type CustomerProfile struct {
	ID         uuid.UUID
	TotalSpent decimal.Decimal
	OrderCount int64
	Tags       []string
	City       string
}

// Matches reports whether the customer satisfies every present clause of the criteria.
// It never fails: unsatisfiable criteria (min > max) match no one.
func Matches(customer CustomerProfile, criteria SegmentCriteria) bool {
	if !criteria.IsSatisfiable() {
		return false
	}
	if !criteria.TotalSpent.Contains(customer.TotalSpent) {
		return false
	}
	if !criteria.OrderCount.Contains(customer.OrderCount) {
		return false
	}
	for _, tag := range criteria.Tags {
		if !slices.Contains(customer.Tags, tag) {
			return false
		}
	}
	if len(criteria.Cities) > 0 {
		if customer.City == "" || !slices.Contains(criteria.Cities, customer.City) {
			return false
		}
	}
	return true
}

// MatchingIDs returns the ids of the customers matching the criteria, in input order
func MatchingIDs(customers []CustomerProfile, criteria SegmentCriteria) []uuid.UUID {
	if !criteria.IsSatisfiable() {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(customers))
	for i := range customers {
		if Matches(customers[i], criteria) {
			ids = append(ids, customers[i].ID)
		}
	}
	return ids
}
