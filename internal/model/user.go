package model

import (
	"time"
)

// User roles
const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleUser        = "user"
)

// User represents an account inside a tenant. TenantID is nil only for
// the tenant-less super_admin class; email uniqueness is scoped per
// tenant, not global.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     *uint     `json:"tenant_id" gorm:"index;uniqueIndex:idx_users_tenant_email"`
	Email        string    `json:"email" gorm:"type:varchar(100);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string    `json:"full_name" gorm:"type:varchar(100);not null"`
	Role         string    `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsSuperAdmin reports whether the user belongs to the tenant-less
// super-admin class.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin && u.TenantID == nil
}
