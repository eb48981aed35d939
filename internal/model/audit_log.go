package model

import (
	"time"
)

// Audit actions
const (
	ActionRegisterTenant   = "REGISTER_TENANT"
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionUpdateTenant     = "UPDATE_TENANT"
	ActionCreateUser       = "CREATE_USER"
	ActionUpdateUser       = "UPDATE_USER"
	ActionDeleteUser       = "DELETE_USER"
	ActionCreateProject    = "CREATE_PROJECT"
	ActionUpdateProject    = "UPDATE_PROJECT"
	ActionDeleteProject    = "DELETE_PROJECT"
	ActionCreateTask       = "CREATE_TASK"
	ActionUpdateTask       = "UPDATE_TASK"
	ActionUpdateTaskStatus = "UPDATE_TASK_STATUS"
	ActionDeleteTask       = "DELETE_TASK"
)

// AuditLog is an append-only record of a mutating action. TenantID is
// nil for system-level actions, UserID is nil when no actor could be
// authenticated. Rows are never updated or deleted.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   *uint     `json:"tenant_id" gorm:"index"`
	UserID     *uint     `json:"user_id" gorm:"index"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(50);not null"`
	EntityID   *uint     `json:"entity_id"`
	CreatedAt  time.Time `json:"created_at"`
}
