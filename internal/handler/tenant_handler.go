package handler

import (
	"net/http"
	"strconv"
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

// tenantStats carries the per-tenant resource counts returned with
// tenant details.
type tenantStats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalProjects int64 `json:"total_projects"`
	TotalTasks    int64 `json:"total_tasks"`
}

// tenantRow is the list shape: the tenant plus its usage counts.
type tenantRow struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	Subdomain        string    `json:"subdomain"`
	SubscriptionPlan string    `json:"subscription_plan"`
	MaxUsers         int       `json:"max_users"`
	MaxProjects      int       `json:"max_projects"`
	Status           string    `json:"status"`
	TotalUsers       int64     `json:"total_users"`
	TotalProjects    int64     `json:"total_projects"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, apperr.New(apperr.Validation, "invalid "+name)
	}
	return uint(id), nil
}

func paramQueryID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.QueryParam(name), 10, 32)
	if err != nil {
		return 0, apperr.New(apperr.Validation, "invalid "+name)
	}
	return uint(id), nil
}

// resolveTenant applies the boundary rule for a tenant addressed by id:
// a principal outside the tenant gets NotFound, never confirmation that
// the id exists.
func resolveTenant(db *gorm.DB, p *authz.Principal, tenantID uint) (*model.Tenant, error) {
	if !p.IsSuperAdmin() && !p.SameTenant(tenantID) {
		return nil, apperr.New(apperr.NotFound, "tenant not found")
	}
	var tenant model.Tenant
	if err := db.First(&tenant, tenantID).Error; err != nil {
		return nil, apperr.FromDB(err, "tenant not found")
	}
	return &tenant, nil
}

// GetTenant returns tenant details with resource counts.
func GetTenant(c echo.Context) error {
	p := principal(c)
	prometheus.RecordEntityOperation("tenant", "read")

	tenantID, err := paramID(c, "tenantId")
	if err != nil {
		return fail(c, err)
	}
	if authz.Can(p.Role, authz.EntityTenant, authz.VerbRead) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	db := database.WithContext(c.Request().Context())
	defer prometheus.TrackDBOperation("query")(time.Now())

	tenant, err := resolveTenant(db, p, tenantID)
	if err != nil {
		return fail(c, err)
	}

	var stats tenantStats
	if err := db.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&stats.TotalUsers).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}
	if err := db.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&stats.TotalProjects).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}
	if err := db.Model(&model.Task{}).Where("tenant_id = ?", tenantID).Count(&stats.TotalTasks).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	return ok(c, http.StatusOK, echo.Map{
		"tenant": tenant,
		"stats":  stats,
	})
}

// ListTenants returns all tenants with usage counts for super_admin,
// or just the caller's own tenant for everyone else.
func ListTenants(c echo.Context) error {
	p := principal(c)
	prometheus.RecordEntityOperation("tenant", "list")

	db := database.WithContext(c.Request().Context())
	defer prometheus.TrackDBOperation("query")(time.Now())

	query := db.Model(&model.Tenant{})
	if !p.IsSuperAdmin() {
		if p.TenantID == nil {
			return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
		}
		query = query.Where("id = ?", *p.TenantID)
	}

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if plan := c.QueryParam("subscriptionPlan"); plan != "" {
		query = query.Where("subscription_plan = ?", plan)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	page, limit := pagination(c, 10)
	var tenants []tenantRow
	err := query.
		Select(`tenants.id, tenants.name, tenants.subdomain, tenants.subscription_plan,
			tenants.max_users, tenants.max_projects, tenants.status,
			tenants.created_at, tenants.updated_at,
			(SELECT COUNT(*) FROM users WHERE users.tenant_id = tenants.id) AS total_users,
			(SELECT COUNT(*) FROM projects WHERE projects.tenant_id = tenants.id) AS total_projects`).
		Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).
		Scan(&tenants).Error
	if err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	return ok(c, http.StatusOK, echo.Map{
		"tenants": tenants,
		"pagination": echo.Map{
			"current_page": page,
			"total_pages":  totalPages(total, limit),
			"total":        total,
			"limit":        limit,
		},
	})
}

// UpdateTenant applies a partial update. The patch contains only the
// fields the caller is authorized to change: tenant_admin may rename
// its own tenant; plan, quota ceilings and lifecycle status require
// super_admin.
func UpdateTenant(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("tenant", "update")

	tenantID, err := paramID(c, "tenantId")
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		Name             *string `json:"name"`
		Status           *string `json:"status"`
		SubscriptionPlan *string `json:"subscriptionPlan"`
		MaxUsers         *int    `json:"maxUsers"`
		MaxProjects      *int    `json:"maxProjects"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}

	db := database.WithContext(c.Request().Context())

	// Boundary first: outside the tenant the row does not exist as far
	// as the caller is concerned.
	tenant, err := resolveTenant(db, p, tenantID)
	if err != nil {
		return fail(c, err)
	}
	if authz.Can(p.Role, authz.EntityTenant, authz.VerbUpdate) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	restricted := req.Status != nil || req.SubscriptionPlan != nil || req.MaxUsers != nil || req.MaxProjects != nil
	if restricted && !p.IsSuperAdmin() {
		return fail(c, apperr.New(apperr.Forbidden, "only super_admin can update plan, quota or status"))
	}

	patch := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		patch["name"] = *req.Name
	}
	if p.IsSuperAdmin() {
		if req.Status != nil {
			patch["status"] = *req.Status
		}
		if req.SubscriptionPlan != nil {
			patch["subscription_plan"] = *req.SubscriptionPlan
		}
		if req.MaxUsers != nil {
			patch["max_users"] = *req.MaxUsers
		}
		if req.MaxProjects != nil {
			patch["max_projects"] = *req.MaxProjects
		}
	}
	if len(patch) == 0 {
		return fail(c, apperr.New(apperr.Validation, "no fields to update"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(tenant).Updates(patch).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&tenantID, &p.UserID, model.ActionUpdateTenant, "tenant", &tenantID)

	log.Info("Tenant updated", zap.Uint("tenant_id", tenantID))
	return okMessage(c, http.StatusOK, "tenant updated successfully", tenant)
}

func pagination(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
