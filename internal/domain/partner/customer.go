package partner

import (
	"slices"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerStatus represents the status of a customer
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

const (
	maxTagLength  = 50
	maxTagCount   = 100
	maxCityLength = 100
)

// Customer represents a customer in the partner context.
// TotalSpent, OrderCount and StatsUpdatedAt are derived values owned by the
// statistics recalculation; they are never edited through the customer itself.
type Customer struct {
	shared.TenantAggregateRoot
	Code           string
	Name           string
	Email          string
	Status         CustomerStatus
	City           string
	Tags           []string
	TotalSpent     decimal.Decimal
	OrderCount     int64
	StatsUpdatedAt *time.Time
}

// NewCustomer creates a new active customer
func NewCustomer(tenantID uuid.UUID, code, name string) (*Customer, error) {
	if err := validateCustomerCode(code); err != nil {
		return nil, err
	}
	if err := validateCustomerName(name); err != nil {
		return nil, err
	}

	customer := &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(code),
		Name:                name,
		Status:              CustomerStatusActive,
		Tags:                []string{},
		TotalSpent:          decimal.Zero,
	}
	customer.AddDomainEvent(NewCustomerCreatedEvent(customer))
	return customer, nil
}

// Rename updates the customer's display name
func (c *Customer) Rename(name string) error {
	if err := validateCustomerName(name); err != nil {
		return err
	}
	c.Name = name
	c.Touch()
	c.IncrementVersion()
	return nil
}

// SetCity sets the customer's city. An empty value clears it.
// The value is stored as given; matching against it is exact.
func (c *Customer) SetCity(city string) error {
	city = strings.TrimSpace(city)
	if len(city) > maxCityLength {
		return shared.NewDomainError("INVALID_CITY", "City cannot exceed 100 characters")
	}
	c.City = city
	c.Touch()
	c.IncrementVersion()
	return nil
}

// SetTags replaces the tag set. Duplicates collapse, order is not kept.
func (c *Customer) SetTags(tags []string) error {
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return err
	}
	c.Tags = normalized
	c.Touch()
	c.IncrementVersion()
	c.AddDomainEvent(NewCustomerTagsChangedEvent(c))
	return nil
}

// AddTag adds a single tag; adding an existing tag is a no-op
func (c *Customer) AddTag(tag string) error {
	if c.HasTag(tag) {
		return nil
	}
	return c.SetTags(append(slices.Clone(c.Tags), tag))
}

// RemoveTag removes a single tag if present
func (c *Customer) RemoveTag(tag string) error {
	if !c.HasTag(tag) {
		return nil
	}
	return c.SetTags(slices.DeleteFunc(slices.Clone(c.Tags), func(t string) bool { return t == tag }))
}

// HasTag reports whether the customer carries the tag (case-sensitive)
func (c *Customer) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// ApplyStatistics overwrites the derived statistics.
// Returns false when the values already match and nothing changed.
func (c *Customer) ApplyStatistics(totalSpent decimal.Decimal, orderCount int64, at time.Time) (bool, error) {
	if totalSpent.IsNegative() || orderCount < 0 {
		return false, shared.NewDomainError("INVALID_STATISTICS", "Customer statistics cannot be negative")
	}
	if c.TotalSpent.Equal(totalSpent) && c.OrderCount == orderCount {
		return false, nil
	}
	c.TotalSpent = totalSpent
	c.OrderCount = orderCount
	c.StatsUpdatedAt = &at
	return true, nil
}

// Activate marks the customer active
func (c *Customer) Activate() {
	c.Status = CustomerStatusActive
	c.Touch()
	c.IncrementVersion()
}

// Deactivate marks the customer inactive
func (c *Customer) Deactivate() {
	c.Status = CustomerStatusInactive
	c.Touch()
	c.IncrementVersion()
}

func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

// NormalizeTags trims, validates and deduplicates a tag list.
// Case is preserved: "VIP" and "vip" are distinct tags.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) > maxTagCount {
		return nil, shared.NewDomainError("INVALID_TAGS", "A customer cannot carry more than 100 tags")
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, shared.NewDomainError("INVALID_TAGS", "Tags cannot be empty")
		}
		if len(tag) > maxTagLength {
			return nil, shared.NewDomainError("INVALID_TAGS", "Tags cannot exceed 50 characters")
		}
		out = append(out, tag)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func validateCustomerCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Customer code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Customer code cannot exceed 50 characters")
	}
	return nil
}

func validateCustomerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	return nil
}
