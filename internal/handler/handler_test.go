package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jashinspires/WorkGrid/internal/middleware"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/internal/quota"
	"github.com/jashinspires/WorkGrid/pkg/config"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/jashinspires/WorkGrid/pkg/jwtutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "correct-horse"

// setupTest wires an in-memory database into the package globals and
// returns a router with the production route table.
func setupTest(t *testing.T) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	return newTestRouter()
}

// newTestRouter mirrors the server's route table without the logging
// and metrics middleware.
func newTestRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDMiddleware)
	e.Use(middleware.DeadlineMiddleware)

	e.GET("/health", HealthCheck)

	auth := e.Group("/api/auth")
	auth.POST("/login", Login)
	auth.POST("/register-tenant", RegisterTenant)

	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/auth/me", Me)
	api.POST("/auth/logout", Logout)

	tenants := api.Group("/tenants")
	tenants.GET("", ListTenants)
	tenants.GET("/:tenantId", GetTenant)
	tenants.PUT("/:tenantId", UpdateTenant)
	tenants.POST("/:tenantId/users", AddUser)
	tenants.GET("/:tenantId/users", ListUsers)

	users := api.Group("/users")
	users.PUT("/:userId", UpdateUser)
	users.DELETE("/:userId", DeleteUser)

	projects := api.Group("/projects")
	projects.POST("", CreateProject)
	projects.GET("", GetProjects)
	projects.PUT("/:projectId", UpdateProject)
	projects.DELETE("/:projectId", DeleteProject)
	projects.POST("/:projectId/tasks", CreateTask)
	projects.GET("/:projectId/tasks", GetTasksByProject)
	projects.DELETE("/:projectId/tasks/:taskId", DeleteTask)

	tasks := api.Group("/tasks")
	tasks.PUT("/:taskId", UpdateTask)
	tasks.PATCH("/:taskId/status", UpdateTaskStatus)
	tasks.DELETE("/:taskId", DeleteTask)

	return e
}

func seedTenant(t *testing.T, subdomain, plan string) *model.Tenant {
	t.Helper()
	limits, ok := quota.LimitsFor(plan)
	require.True(t, ok)
	tenant := &model.Tenant{
		Name:             subdomain,
		Subdomain:        subdomain,
		SubscriptionPlan: plan,
		MaxUsers:         limits.MaxUsers,
		MaxProjects:      limits.MaxProjects,
		Status:           model.TenantStatusActive,
	}
	require.NoError(t, database.DB.Create(tenant).Error)
	return tenant
}

func seedUser(t *testing.T, tenantID *uint, email, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, database.DB.Create(user).Error)
	return user
}

func tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := jwtutil.GenerateToken(user.ID, user.TenantID, user.Email, user.Role)
	require.NoError(t, err)
	return token
}

// doRequest performs a JSON request against the router. An empty token
// leaves the Authorization header unset.
func doRequest(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// dataMap returns the envelope's data as a generic map for field
// assertions.
func dataMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	env := decodeEnvelope(t, rec)
	m, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", env.Data)
	return m
}

func auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, database.DB.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func TestHealthCheck(t *testing.T) {
	e := setupTest(t)
	rec := doRequest(t, e, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
