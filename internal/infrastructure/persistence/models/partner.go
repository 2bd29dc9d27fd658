package models

import (
	"encoding/json"
	"time"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	TenantAggregateModel
	Code           string                 `gorm:"type:varchar(50);not null"`
	Name           string                 `gorm:"type:varchar(200);not null"`
	Email          string                 `gorm:"type:varchar(200)"`
	Status         partner.CustomerStatus `gorm:"type:varchar(20);not null;default:'active'"`
	City           string                 `gorm:"type:varchar(100)"`
	TagsJSON       string                 `gorm:"column:tags;type:jsonb;not null;default:'[]'"`
	TotalSpent     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	OrderCount     int64                  `gorm:"not null;default:0"`
	StatsUpdatedAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Code:                m.Code,
		Name:                m.Name,
		Email:               m.Email,
		Status:              m.Status,
		City:                m.City,
		Tags:                DecodeTags(m.TagsJSON),
		TotalSpent:          m.TotalSpent,
		OrderCount:          m.OrderCount,
		StatsUpdatedAt:      m.StatsUpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Customer entity.
func (m *CustomerModel) FromDomain(c *partner.Customer) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Code = c.Code
	m.Name = c.Name
	m.Email = c.Email
	m.Status = c.Status
	m.City = c.City
	m.TagsJSON = EncodeTags(c.Tags)
	m.TotalSpent = c.TotalSpent
	m.OrderCount = c.OrderCount
	m.StatsUpdatedAt = c.StatsUpdatedAt
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity.
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// EncodeTags serializes a tag list; nil encodes as an empty array
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags parses a stored tag array. Malformed or empty values decode as no tags.
func DecodeTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
