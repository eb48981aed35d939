package handler

import (
	"errors"
	"net/http"
	"strings"
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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AddUser creates a user inside a tenant. The quota reservation, the
// in-tenant email uniqueness check and the insert run in one
// transaction; the password hash is computed before it opens.
func AddUser(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "create")

	tenantID, err := paramID(c, "tenantId")
	if err != nil {
		return fail(c, err)
	}
	if !p.IsSuperAdmin() && !p.SameTenant(tenantID) {
		return fail(c, apperr.New(apperr.NotFound, "tenant not found"))
	}
	if authz.Can(p.Role, authz.EntityUser, authz.VerbCreate) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "only tenant_admin can add users"))
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return fail(c, apperr.New(apperr.Validation, "email, password and fullName are required"))
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleTenantAdmin {
		return fail(c, apperr.New(apperr.Validation, "invalid role"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, apperr.Wrap(apperr.Internal, "user creation failed", err))
	}

	user := model.User{
		TenantID:     &tenantID,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		IsActive:     true,
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())
	err = database.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if reserveErr := quota.Reserve(tx, tenantID, quota.ResourceUsers); reserveErr != nil {
			return reserveErr
		}

		var existing model.User
		findErr := tx.Where("email = ? AND tenant_id = ?", user.Email, tenantID).First(&existing).Error
		if findErr == nil {
			return apperr.New(apperr.Conflict, "email already exists in this tenant")
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return apperr.FromDB(findErr, "user not found")
		}

		if createErr := tx.Create(&user).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.Conflict, "email already exists in this tenant")
			}
			return apperr.FromDB(createErr, "user not found")
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(&tenantID, &p.UserID, model.ActionCreateUser, "user", &user.ID)

	log.Info("User created",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("user_id", user.ID),
		zap.String("role", user.Role))

	return okMessage(c, http.StatusCreated, "user created successfully", user)
}

// ListUsers returns a tenant's users with optional search and role
// filters.
func ListUsers(c echo.Context) error {
	p := principal(c)
	prometheus.RecordEntityOperation("user", "list")

	tenantID, err := paramID(c, "tenantId")
	if err != nil {
		return fail(c, err)
	}
	if !p.IsSuperAdmin() && !p.SameTenant(tenantID) {
		return fail(c, apperr.New(apperr.NotFound, "tenant not found"))
	}

	db := database.WithContext(c.Request().Context())
	defer prometheus.TrackDBOperation("query")(time.Now())

	query := db.Model(&model.User{}).Where("tenant_id = ?", tenantID)
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	page, limit := pagination(c, 50)
	var users []model.User
	if err := query.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error; err != nil {
		return fail(c, apperr.FromDB(err, "tenant not found"))
	}

	return ok(c, http.StatusOK, echo.Map{
		"users": users,
		"total": total,
		"pagination": echo.Map{
			"current_page": page,
			"total_pages":  totalPages(total, limit),
			"limit":        limit,
		},
	})
}

// UpdateUser applies a partial update to a user. A user-role caller may
// change only their own full name; role and is_active require
// tenant_admin or super_admin.
func UpdateUser(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "update")

	userID, err := paramID(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		FullName *string `json:"fullName"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"isActive"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}

	db := database.WithContext(c.Request().Context())
	defer prometheus.TrackDBOperation("update")(time.Now())

	// Boundary filter rides in the lookup itself; a row in another
	// tenant is a miss.
	var user model.User
	if err := db.Scopes(authz.TenantScope(p)).First(&user, userID).Error; err != nil {
		return fail(c, apperr.FromDB(err, "user not found"))
	}

	isOwner := user.ID == p.UserID
	if !authz.CanOrOwner(p.Role, authz.EntityUser, authz.VerbUpdate, isOwner) {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	admin := p.Role == model.RoleTenantAdmin || p.IsSuperAdmin()
	if (req.Role != nil || req.IsActive != nil) && !admin {
		return fail(c, apperr.New(apperr.Forbidden, "only tenant_admin can change role or active flag"))
	}

	patch := map[string]interface{}{}
	if req.FullName != nil && *req.FullName != "" {
		patch["full_name"] = *req.FullName
	}
	if admin && req.Role != nil {
		if *req.Role != model.RoleUser && *req.Role != model.RoleTenantAdmin {
			return fail(c, apperr.New(apperr.Validation, "invalid role"))
		}
		patch["role"] = *req.Role
	}
	if admin && req.IsActive != nil {
		patch["is_active"] = *req.IsActive
	}
	if len(patch) == 0 {
		return fail(c, apperr.New(apperr.Validation, "no fields to update"))
	}

	if err := db.Model(&user).Updates(patch).Error; err != nil {
		return fail(c, apperr.FromDB(err, "user not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(user.TenantID, &p.UserID, model.ActionUpdateUser, "user", &user.ID)

	return okMessage(c, http.StatusOK, "user updated successfully", user)
}

// DeleteUser removes a user. Self-deletion is always forbidden.
func DeleteUser(c echo.Context) error {
	p := principal(c)
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "delete")

	userID, err := paramID(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if userID == p.UserID {
		return fail(c, apperr.New(apperr.Forbidden, "cannot delete yourself"))
	}

	db := database.WithContext(c.Request().Context())

	var user model.User
	if err := db.Scopes(authz.TenantScope(p)).First(&user, userID).Error; err != nil {
		return fail(c, apperr.FromDB(err, "user not found"))
	}

	if authz.Can(p.Role, authz.EntityUser, authz.VerbDelete) != authz.Allow {
		return fail(c, apperr.New(apperr.Forbidden, "unauthorized access"))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := db.Delete(&model.User{}, user.ID).Error; err != nil {
		return fail(c, apperr.FromDB(err, "user not found"))
	}

	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(user.TenantID, &p.UserID, model.ActionDeleteUser, "user", &user.ID)

	log.Info("User deleted", zap.Uint("user_id", user.ID))
	return okMessage(c, http.StatusOK, "user deleted successfully", nil)
}
