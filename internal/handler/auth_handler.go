package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/audit"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/internal/provision"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/pkg/jwtutil"
	"github.com/jashinspires/WorkGrid/pkg/logger"
	"github.com/jashinspires/WorkGrid/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Login authenticates a user and issues a session token. Two paths:
// a subdomain resolves tenant then user-in-tenant; no subdomain (or the
// literal "system") is the tenant-less super_admin path.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		TenantSubdomain string `json:"tenantSubdomain"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	if req.Email == "" || req.Password == "" {
		return fail(c, apperr.New(apperr.Validation, "email and password are required"))
	}

	db := database.WithContext(c.Request().Context())
	email := strings.ToLower(req.Email)

	var user model.User
	var tenantID *uint

	// Time only the lookups; bcrypt and token signing are not DB work.
	lookupStart := time.Now()
	if req.TenantSubdomain == "" || req.TenantSubdomain == "system" {
		// Super-admin path: tenant-less account keyed by role.
		err := db.Where("email = ? AND tenant_id IS NULL AND role = ?", email, model.RoleSuperAdmin).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail(c, apperr.New(apperr.Unauthenticated, "invalid credentials"))
			}
			return fail(c, apperr.FromDB(err, "invalid credentials"))
		}
	} else {
		var tenant model.Tenant
		err := db.Where("subdomain = ?", strings.ToLower(req.TenantSubdomain)).First(&tenant).Error
		if err != nil {
			return fail(c, apperr.FromDB(err, "tenant not found"))
		}

		err = db.Where("email = ? AND tenant_id = ?", email, tenant.ID).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail(c, apperr.New(apperr.Unauthenticated, "invalid credentials"))
			}
			return fail(c, apperr.FromDB(err, "invalid credentials"))
		}
		tenantID = &tenant.ID
	}
	prometheus.TrackDBOperation("query")(lookupStart)

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", email))
		return fail(c, apperr.New(apperr.Unauthenticated, "invalid credentials"))
	}

	if !user.IsActive {
		return fail(c, apperr.New(apperr.Forbidden, "account is disabled"))
	}

	token, err := jwtutil.GenerateToken(user.ID, tenantID, user.Email, user.Role)
	if err != nil {
		return fail(c, apperr.Wrap(apperr.Internal, "token error", err))
	}
	prometheus.IncreaseActiveTokens()

	// Best-effort: a failed audit write never fails the login.
	rec := audit.NewRecorder(database.GetDB(), log)
	rec.Record(tenantID, &user.ID, model.ActionLogin, "user", &user.ID)

	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.String("role", user.Role))

	return ok(c, http.StatusOK, echo.Map{
		"user":       user,
		"token":      token,
		"expires_in": jwtutil.ExpiresInSeconds(),
	})
}

// RegisterTenant provisions a new tenant with its admin user. The
// session token is issued only after the transaction commits.
func RegisterTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.TenantRegistrationCounter.Inc()

	var req struct {
		TenantName    string `json:"tenantName"`
		Subdomain     string `json:"subdomain"`
		AdminEmail    string `json:"adminEmail"`
		AdminPassword string `json:"adminPassword"`
		AdminFullName string `json:"adminFullName"`
		AdminName     string `json:"adminName"`
		Plan          string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.Validation, "invalid request"))
	}
	fullName := req.AdminFullName
	if fullName == "" {
		fullName = req.AdminName
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())
	result, err := provision.RegisterTenant(database.WithContext(c.Request().Context()), provision.Input{
		TenantName:    req.TenantName,
		Subdomain:     req.Subdomain,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminFullName: fullName,
		Plan:          req.Plan,
	})
	if err != nil {
		return fail(c, err)
	}

	token, err := jwtutil.GenerateToken(result.Admin.ID, &result.Tenant.ID, result.Admin.Email, result.Admin.Role)
	if err != nil {
		return fail(c, apperr.Wrap(apperr.Internal, "token error", err))
	}
	prometheus.IncreaseActiveTokens()

	log.Info("Tenant registered",
		zap.Uint("tenant_id", result.Tenant.ID),
		zap.String("subdomain", result.Tenant.Subdomain),
		zap.String("plan", result.Tenant.SubscriptionPlan))

	return ok(c, http.StatusCreated, echo.Map{
		"tenant":     result.Tenant,
		"user":       result.Admin,
		"token":      token,
		"expires_in": jwtutil.ExpiresInSeconds(),
	})
}

// Me returns the authenticated user's profile with their tenant.
func Me(c echo.Context) error {
	p := principal(c)
	db := database.WithContext(c.Request().Context())

	var user model.User
	if err := db.First(&user, p.UserID).Error; err != nil {
		return fail(c, apperr.FromDB(err, "user not found"))
	}

	var tenant *model.Tenant
	if user.TenantID != nil {
		var t model.Tenant
		if err := db.First(&t, *user.TenantID).Error; err != nil {
			return fail(c, apperr.FromDB(err, "tenant not found"))
		}
		tenant = &t
	}

	return ok(c, http.StatusOK, echo.Map{
		"user":   user,
		"tenant": tenant,
	})
}

// Logout records the action. Tokens are stateless, so the client simply
// discards its copy; a failed audit write does not fail the logout.
func Logout(c echo.Context) error {
	p := principal(c)

	rec := audit.NewRecorder(database.GetDB(), logger.FromContext(c))
	rec.Record(p.TenantID, &p.UserID, model.ActionLogout, "user", nil)

	return okMessage(c, http.StatusOK, "logged out successfully", nil)
}
