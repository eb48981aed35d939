package handler

import (
	"net/http"
	"time"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/audit"
	"github.com/jashinspires/WorkGrid/internal/authz"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/internal/quota"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/pkg/logger"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// projectRow is the list shape: the project plus its creator's name and
// task counts.
type projectRow struct {
	ID                 uint      `json:"id"`
	TenantID           uint      `json:"tenant_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Status             string    `json:"status"`
	CreatedBy          uint      `json:"created_by"`
	CreatorName        string    `json:"creator_name"`
	TaskCount          int64     `json:"task_count"`
	CompletedTaskCount int64     `json:"completed_task_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateProject creates a project in the caller's tenant. The quota
// reservation and the insert share one transaction so concurrent
// creations cannot overshoot the plan ceiling.
func CreateProject(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("project", "create")

	if p.TenantID == nil {
		return fail(c, apperr.New(apperr.Validation, "tenant context required"))
	}
	if authz.Can(p.Role, authz.EntityProject, authz.VerbCreate) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if req.Name == "" {
		return fail(c, apperr.New(apperr.Validation, "name is required"))
	}

	project := model.Project{
		TenantID:    *p.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      model.ProjectStatusActive,
		CreatedBy:   p.UserID,
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())
	err := database.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if reserveErr := quota.Reserve(tx, *p.TenantID, quota.ResourceProjects); reserveErr != nil {
			return reserveErr
		}
		if createErr := tx.Create(&project).Error; createErr != nil {
			return apperr.FromDB(createErr, "project not found")
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(p.TenantID, &p.UserID, model.ActionCreateProject, "project", &project.ID)

	log.Info("Project created",
		zap.Uint("tenant_id", *p.TenantID),
		zap.Uint("project_id", project.ID))

	return ok(c, http.StatusCreated, echo.Map{"project": project})
}

// GetProjects lists the caller's tenant projects with creator names and
// task counts. super_admin may target any tenant via ?tenantId=.
func GetProjects(c echo.Context) error {
	p := principal(c)
	prometheus.RecordEntityOperation("project", "list")

	var tenantID uint
	switch {
	case p.IsSuperAdmin():
		id, err := paramQueryID(c, "tenantId")
		if err != nil {
			return fail(c, err)
		}
		tenantID = id
	case p.TenantID != nil:
		tenantID = *p.TenantID
	default:
		return fail(c, apperr.New(apperr.Validation, "tenant context required"))
	}

	db := database.WithContext(c.Request().Context())
	defer prometheus.TrackDBOperation("query")(time.Now())

	var rows []projectRow
	err := db.Model(&model.Project{}).
		Select(`projects.id, projects.tenant_id, projects.name, projects.description, projects.status,
			projects.created_by, projects.created_at, projects.updated_at,
			users.full_name AS creator_name,
			(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id) AS task_count,
			(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id AND tasks.status = 'done') AS completed_task_count`).
		Joins("LEFT JOIN users ON users.id = projects.created_by").
		Where("projects.tenant_id = ?", tenantID).
		Order("projects.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return fail(c, apperr.FromDB(err, "project not found"))
	}

	return ok(c, http.StatusOK, echo.Map{"projects": rows})
}

// resolveProject fetches a project with the tenant boundary filter in
// the query itself.
func resolveProject(db *gorm.DB, p *authz.Principal, projectID uint) (*model.Project, error) {
	var project model.Project
	if err := db.Scopes(authz.TenantScope(p)).First(&project, projectID).Error; err != nil {
		return nil, apperr.FromDB(err, "project not found")
	}
	return &project, nil
}

// UpdateProject applies a partial update. A user-role caller must be
// the project's creator; tenant_admin may update any in-tenant project.
func UpdateProject(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("project", "update")

	projectID, err := paramID(c, "projectId")
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}

	db := database.WithContext(c.Request().Context())
	project, err := resolveProject(db, p, projectID)
	if err != nil {
		return fail(c, err)
	}

	if !authz.CanOrOwner(p.Role, authz.EntityProject, authz.VerbUpdate, project.CreatedBy == p.UserID) {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized to update this project"))
	}

	patch := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		patch["name"] = *req.Name
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.Status != nil && *req.Status != "" {
		patch["status"] = *req.Status
	}
	if len(patch) == 0 {
		return fail(c, apperr.New(apperr.Validation, "no fields to update"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(project).Updates(patch).Error; err != nil {
		return fail(c, apperr.FromDB(err, "project not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&project.TenantID, &p.UserID, model.ActionUpdateProject, "project", &project.ID)

	return okMessage(c, http.StatusOK, "project updated successfully", project)
}

// DeleteProject removes a project and its tasks in one transaction.
func DeleteProject(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("project", "delete")

	projectID, err := paramID(c, "projectId")
	if err != nil {
		return fail(c, err)
	}

	db := database.WithContext(c.Request().Context())
	project, err := resolveProject(db, p, projectID)
	if err != nil {
		return fail(c, err)
	}

	if !authz.CanOrOwner(p.Role, authz.EntityProject, authz.VerbDelete, project.CreatedBy == p.UserID) {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized to delete this project"))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if delErr := tx.Where("project_id = ?", project.ID).Delete(&model.Task{}).Error; delErr != nil {
			return apperr.FromDB(delErr, "project not found")
		}
		if delErr := tx.Delete(&model.Project{}, project.ID).Error; delErr != nil {
			return apperr.FromDB(delErr, "project not found")
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&project.TenantID, &p.UserID, model.ActionDeleteProject, "project", &project.ID)

	log.Info("Project deleted", zap.Uint("project_id", project.ID))
	return okMessage(c, http.StatusOK, "project deleted successfully", nil)
}
