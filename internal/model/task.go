package model

import (
	"time"
)

// Task statuses
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusBlocked    = "blocked"
	TaskStatusDone       = "done"
)

// Task priorities
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// ValidTaskStatus reports whether s is one of the allowed task statuses.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone:
		return true
	}
	return false
}

// Task belongs to a project. TenantID is a denormalized copy of the
// parent project's tenant so that list and boundary queries stay
// single-hop; it must always equal the project's TenantID.
type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ProjectID   uint       `json:"project_id" gorm:"index;not null"`
	TenantID    uint       `json:"tenant_id" gorm:"index;not null"`
	Title       string     `json:"title" gorm:"type:varchar(200);not null"`
	Description string     `json:"description" gorm:"type:text"`
	AssignedTo  *uint      `json:"assigned_to" gorm:"index"`
	Priority    string     `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Status      string     `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
