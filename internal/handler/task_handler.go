package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/audit"
	"github.com/jashinspires/WorkGrid/internal/authz"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/pkg/logger"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// taskRow is the list shape: the task plus its assignee's name.
type taskRow struct {
	ID           uint       `json:"id"`
	ProjectID    uint       `json:"project_id"`
	TenantID     uint       `json:"tenant_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AssignedTo   *uint      `json:"assigned_to"`
	AssigneeName *string    `json:"assignee_name"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"due_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateTask creates a task under a project. The parent project is
// resolved with the tenant filter in the lookup, so a task can never be
// attached to another tenant's project; the task inherits the project's
// tenant.
func CreateTask(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("task", "create")

	projectID, err := paramID(c, "projectId")
	if err != nil {
		return fail(c, err)
	}
	if authz.Can(p.Role, authz.EntityTask, authz.VerbCreate) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		AssignedTo  *uint      `json:"assignedTo"`
		Priority    string     `json:"priority"`
		Status      string     `json:"status"`
		DueDate     *time.Time `json:"dueDate"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if req.Title == "" {
		return fail(c, apperr.New(apperr.Validation, "title is required"))
	}
	if req.Status != "" && !model.ValidTaskStatus(req.Status) {
		return fail(c, apperr.New(apperr.Validation, "invalid status value"))
	}

	db := database.WithContext(c.Request().Context())
	project, err := resolveProject(db, p, projectID)
	if err != nil {
		return fail(c, err)
	}

	// An assignee must live in the task's tenant.
	if req.AssignedTo != nil {
		var assignee model.User
		findErr := db.Where("id = ? AND tenant_id = ?", *req.AssignedTo, project.TenantID).First(&assignee).Error
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fail(c, apperr.New(apperr.Validation, "assignee not found in this tenant"))
			}
			return fail(c, apperr.FromDB(findErr, "user not found"))
		}
	}

	task := model.Task{
		ProjectID:   project.ID,
		TenantID:    project.TenantID,
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
	}
	if task.Priority == "" {
		task.Priority = model.TaskPriorityMedium
	}
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&task).Error; err != nil {
		return fail(c, apperr.FromDB(err, "task not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&task.TenantID, &p.UserID, model.ActionCreateTask, "task", &task.ID)

	log.Info("Task created",
		zap.Uint("project_id", task.ProjectID),
		zap.Uint("task_id", task.ID))

	return ok(c, http.StatusCreated, echo.Map{"task": task})
}

// GetTasksByProject lists a project's tasks with assignee names.
func GetTasksByProject(c echo.Context) error {
	p := principal(c)
	prometheus.RecordEntityOperation("task", "list")

	projectID, err := paramID(c, "projectId")
	if err != nil {
		return fail(c, err)
	}

	db := database.WithContext(c.Request().Context())
	project, err := resolveProject(db, p, projectID)
	if err != nil {
		return fail(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var rows []taskRow
	err = db.Model(&model.Task{}).
		Select(`tasks.id, tasks.project_id, tasks.tenant_id, tasks.title, tasks.description,
			tasks.assigned_to, tasks.priority, tasks.status, tasks.due_date,
			tasks.created_at, tasks.updated_at,
			users.full_name AS assignee_name`).
		Joins("LEFT JOIN users ON users.id = tasks.assigned_to").
		Where("tasks.project_id = ? AND tasks.tenant_id = ?", project.ID, project.TenantID).
		Order("tasks.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return fail(c, apperr.FromDB(err, "task not found"))
	}

	return ok(c, http.StatusOK, echo.Map{"tasks": rows})
}

// resolveTask fetches a task with the tenant boundary filter in the
// query, then checks ownership for user-role callers: they must be the
// task's assignee or the creator of its project.
func resolveTask(db *gorm.DB, p *authz.Principal, taskID uint, verb authz.Verb) (*model.Task, error) {
	var task model.Task
	if err := db.Scopes(authz.TenantScope(p)).First(&task, taskID).Error; err != nil {
		return nil, apperr.FromDB(err, "task not found")
	}

	switch authz.Can(p.Role, authz.EntityTask, verb) {
	case authz.Allow:
		return &task, nil
	case authz.AllowOwner:
		if task.AssignedTo != nil && *task.AssignedTo == p.UserID {
			return &task, nil
		}
		var project model.Project
		if err := db.First(&project, task.ProjectID).Error; err != nil {
			return nil, apperr.FromDB(err, "project not found")
		}
		if project.CreatedBy == p.UserID {
			return &task, nil
		}
	}
	return nil, apperr.New(apperr.Forbidden, "unauthorized to modify this task")
}

// UpdateTask applies a partial update to a task.
func UpdateTask(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("task", "update")

	taskID, err := paramID(c, "taskId")
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		DueDate     *time.Time `json:"dueDate"`
		AssignedTo  *uint      `json:"assignedTo"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if req.Status != nil && !model.ValidTaskStatus(*req.Status) {
		return fail(c, apperr.New(apperr.Validation, "invalid status value"))
	}

	db := database.WithContext(c.Request().Context())
	task, err := resolveTask(db, p, taskID, authz.VerbUpdate)
	if err != nil {
		return fail(c, err)
	}

	patch := map[string]interface{}{}
	if req.Title != nil && *req.Title != "" {
		patch["title"] = *req.Title
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.Status != nil {
		patch["status"] = *req.Status
	}
	if req.Priority != nil && *req.Priority != "" {
		patch["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		patch["due_date"] = *req.DueDate
	}
	if req.AssignedTo != nil {
		// Zero clears the assignment; any other id must belong to the
		// task's tenant.
		if *req.AssignedTo == 0 {
			patch["assigned_to"] = nil
		} else {
			var assignee model.User
			findErr := db.Where("id = ? AND tenant_id = ?", *req.AssignedTo, task.TenantID).First(&assignee).Error
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return fail(c, apperr.New(apperr.Validation, "assignee not found in this tenant"))
				}
				return fail(c, apperr.FromDB(findErr, "user not found"))
			}
			patch["assigned_to"] = *req.AssignedTo
		}
	}
	if len(patch) == 0 {
		return fail(c, apperr.New(apperr.Validation, "no fields to update"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(task).Updates(patch).Error; err != nil {
		return fail(c, apperr.FromDB(err, "task not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&task.TenantID, &p.UserID, model.ActionUpdateTask, "task", &task.ID)

	return ok(c, http.StatusOK, echo.Map{"task": task})
}

// UpdateTaskStatus moves a task through its workflow states.
func UpdateTaskStatus(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("task", "update_status")

	taskID, err := paramID(c, "taskId")
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if !model.ValidTaskStatus(req.Status) {
		return fail(c, apperr.New(apperr.Validation, "invalid status value"))
	}

	db := database.WithContext(c.Request().Context())
	task, err := resolveTask(db, p, taskID, authz.VerbUpdate)
	if err != nil {
		return fail(c, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(task).Update("status", req.Status).Error; err != nil {
		return fail(c, apperr.FromDB(err, "task not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&task.TenantID, &p.UserID, model.ActionUpdateTaskStatus, "task", &task.ID)

	return ok(c, http.StatusOK, echo.Map{"task": task})
}

// DeleteTask removes a task. When the route carries a project id it
// must match the task's own project.
func DeleteTask(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("task", "delete")

	taskID, err := paramID(c, "taskId")
	if err != nil {
		return fail(c, err)
	}

	db := database.WithContext(c.Request().Context())
	task, err := resolveTask(db, p, taskID, authz.VerbDelete)
	if err != nil {
		return fail(c, err)
	}

	if raw := c.Param("projectId"); raw != "" {
		projectID, parseErr := paramID(c, "projectId")
		if parseErr != nil {
			return fail(c, parseErr)
		}
		if task.ProjectID != projectID {
			return fail(c, apperr.New(apperr.Forbidden, "task does not belong to this project"))
		}
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := db.Delete(&model.Task{}, task.ID).Error; err != nil {
		return fail(c, apperr.FromDB(err, "task not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&task.TenantID, &p.UserID, model.ActionDeleteTask, "task", &task.ID)

	log.Info("Task deleted", zap.Uint("task_id", task.ID))
	return okMessage(c, http.StatusOK, "task deleted", nil)
}
