package authz

import (
	"github.com/jashinspires/WorkGrid/internal/model"
	"gorm.io/gorm"
)

// Principal is the verified identity attached to a request. It is built
// exclusively from a validated token; tenant and role claims arriving
// in request bodies are never trusted.
type Principal struct {
	UserID   uint
	TenantID *uint // nil only for super_admin
	Email    string
	Role     string
}

// IsSuperAdmin reports whether the principal may cross tenant
// boundaries.
func (p *Principal) IsSuperAdmin() bool {
	return p.Role == model.RoleSuperAdmin
}

// SameTenant reports whether tenantID is the principal's own tenant.
func (p *Principal) SameTenant(tenantID uint) bool {
	return p.TenantID != nil && *p.TenantID == tenantID
}

// TenantScope returns a GORM scope that pins every lookup to the
// principal's tenant. The filter is part of the query itself, so a row
// in another tenant is a miss, not a late rejection. Super admins
// bypass the filter entirely.
func TenantScope(p *Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.IsSuperAdmin() {
			return db
		}
		return db.Where("tenant_id = ?", derefTenant(p.TenantID))
	}
}

// derefTenant turns a nil tenant into an impossible id so that a
// non-super principal without a tenant can never match anything.
func derefTenant(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
