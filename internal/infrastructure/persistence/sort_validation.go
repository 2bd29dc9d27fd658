package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SegmentSortFields contains allowed sort fields for segments
var SegmentSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// CustomerSortFields contains allowed sort fields for customers
var CustomerSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"code":        true,
	"name":        true,
	"city":        true,
	"total_spent": true,
	"order_count": true,
}

// MemberSortFields contains allowed sort fields for segment member listings
var MemberSortFields = map[string]bool{
	"added_at": true,
	"code":     true,
	"name":     true,
}
