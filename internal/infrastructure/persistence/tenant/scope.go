// Package tenant provides multi-tenant query scoping for GORM.
//
// Every repository query over tenant-owned rows goes through Scope so a
// missing tenant id fails the query instead of reading across tenants.
//
//	db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Find(&segments)
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a tenant-scoped query has no tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// Scope restricts a query to one tenant's rows.
// The nil UUID adds ErrTenantIDRequired to the statement.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return ScopeColumn("tenant_id", tenantID)
}

// ScopeColumn is Scope for a qualified or differently named tenant column
func ScopeColumn(column string, tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(column+" = ?", tenantID)
	}
}
