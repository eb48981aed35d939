package model

import (
	"time"
)

// Subscription plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Tenant lifecycle statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant represents an isolated customer organization.
// This is the core of our multi-tenant architecture: every owned row
// (user, project, task) carries a back-reference to its tenant so that
// boundary checks never need a join.
//
// Tenants are created only by the provisioning workflow and are never
// hard-deleted.
type Tenant struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(100);not null"`
	Subdomain        string    `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	SubscriptionPlan string    `json:"subscription_plan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers         int       `json:"max_users" gorm:"not null"`
	MaxProjects      int       `json:"max_projects" gorm:"not null"`
	Status           string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
