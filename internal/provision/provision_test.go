package provision

import (
	"fmt"
	"testing"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.Project{}, &model.AuditLog{}))
	return db
}

func validInput() Input {
	return Input{
		TenantName:    "Acme Corp",
		Subdomain:     "Acme",
		AdminEmail:    "Admin@Acme.test",
		AdminPassword: "s3cret-pass",
		AdminFullName: "Ada Admin",
		Plan:          model.PlanPro,
	}
}

func TestRegisterTenant(t *testing.T) {
	db := newTestDB(t)

	res, err := RegisterTenant(db, validInput())
	require.NoError(t, err)

	// Subdomain and email are stored lowercased; ceilings come from the
	// plan, never from the caller.
	assert.Equal(t, "acme", res.Tenant.Subdomain)
	assert.Equal(t, model.PlanPro, res.Tenant.SubscriptionPlan)
	assert.Equal(t, 25, res.Tenant.MaxUsers)
	assert.Equal(t, 15, res.Tenant.MaxProjects)
	assert.Equal(t, model.TenantStatusActive, res.Tenant.Status)

	assert.Equal(t, "admin@acme.test", res.Admin.Email)
	assert.Equal(t, model.RoleTenantAdmin, res.Admin.Role)
	assert.True(t, res.Admin.IsActive)
	require.NotNil(t, res.Admin.TenantID)
	assert.Equal(t, res.Tenant.ID, *res.Admin.TenantID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.Admin.PasswordHash), []byte("s3cret-pass")))

	var logs []model.AuditLog
	require.NoError(t, db.Where("action = ?", model.ActionRegisterTenant).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].TenantID)
	assert.Equal(t, res.Tenant.ID, *logs[0].TenantID)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, res.Admin.ID, *logs[0].UserID)
}

func TestRegisterTenantUnknownPlanDefaultsToFree(t *testing.T) {
	db := newTestDB(t)

	in := validInput()
	in.Plan = "platinum"
	res, err := RegisterTenant(db, in)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, res.Tenant.SubscriptionPlan)
	assert.Equal(t, 5, res.Tenant.MaxUsers)
	assert.Equal(t, 3, res.Tenant.MaxProjects)
}

func TestRegisterTenantMissingFields(t *testing.T) {
	db := newTestDB(t)

	in := validInput()
	in.AdminEmail = ""
	_, err := RegisterTenant(db, in)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	var count int64
	require.NoError(t, db.Model(&model.Tenant{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterTenantDuplicateSubdomain(t *testing.T) {
	db := newTestDB(t)

	_, err := RegisterTenant(db, validInput())
	require.NoError(t, err)

	// Same subdomain in a different case is still a conflict, and the
	// failed attempt must leave no rows behind.
	in := validInput()
	in.Subdomain = "ACME"
	in.AdminEmail = "other@acme.test"
	_, err = RegisterTenant(db, in)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	var tenants, users int64
	require.NoError(t, db.Model(&model.Tenant{}).Count(&tenants).Error)
	require.NoError(t, db.Model(&model.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, tenants)
	assert.EqualValues(t, 1, users)
}

func TestRegisterTenantRollsBackWhenAuditFails(t *testing.T) {
	db := newTestDB(t)

	// With the audit table gone the mandatory audit write fails, which
	// must abort the whole registration.
	require.NoError(t, db.Migrator().DropTable(&model.AuditLog{}))

	_, err := RegisterTenant(db, validInput())
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	var tenants, users int64
	require.NoError(t, db.Model(&model.Tenant{}).Count(&tenants).Error)
	require.NoError(t, db.Model(&model.User{}).Count(&users).Error)
	assert.Zero(t, tenants)
	assert.Zero(t, users)

	// The subdomain stays reusable after the rollback.
	require.NoError(t, db.AutoMigrate(&model.AuditLog{}))
	_, err = RegisterTenant(db, validInput())
	assert.NoError(t, err)
}
