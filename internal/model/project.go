package model

import (
	"time"
)

// Project statuses
const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

// Project belongs to exactly one tenant. TenantID is set once at
// creation from the creating principal and is never updated.
type Project struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TenantID    uint      `json:"tenant_id" gorm:"index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(200);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedBy   uint      `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
