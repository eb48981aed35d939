// Package provision implements the tenant provisioning workflow:
// tenant row, initial tenant_admin user and audit entry created as one
// atomic unit, with the subdomain guarded against duplicates.
package provision

import (
	"errors"
	"strings"

	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/audit"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/internal/quota"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Input is the registration request for a new tenant.
type Input struct {
	TenantName    string
	Subdomain     string
	AdminEmail    string
	AdminPassword string
	AdminFullName string
	Plan          string
}

// Result is the committed outcome of a successful provisioning run.
type Result struct {
	Tenant model.Tenant
	Admin  model.User
}

// RegisterTenant runs the provisioning workflow. The password hash is
// computed before the transaction opens so no lock is held during the
// bcrypt work. Inside one transaction: subdomain uniqueness check,
// tenant insert with plan-derived ceilings, admin user insert, audit
// entry. Failure at any step rolls everything back; partial tenants or
// users never persist.
func RegisterTenant(db *gorm.DB, in Input) (*Result, error) {
	if in.TenantName == "" || in.Subdomain == "" || in.AdminEmail == "" ||
		in.AdminPassword == "" || in.AdminFullName == "" {
		return nil, apperr.New(apperr.Validation, "missing required fields")
	}

	subdomain := strings.ToLower(in.Subdomain)
	plan := quota.NormalizePlan(in.Plan)
	limits, _ := quota.LimitsFor(plan)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "registration failed", err)
	}

	var result Result
	err = db.Transaction(func(tx *gorm.DB) error {
		// The uniqueness check and the insert must see the same state;
		// the unique index on subdomain backstops the race where two
		// transactions pass the check concurrently.
		var existing model.Tenant
		q := tx.Where("subdomain = ?", subdomain)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if findErr := q.First(&existing).Error; findErr == nil {
			return apperr.New(apperr.Conflict, "subdomain already taken")
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return apperr.FromDB(findErr, "subdomain already taken")
		}

		tenant := model.Tenant{
			Name:             in.TenantName,
			Subdomain:        subdomain,
			SubscriptionPlan: plan,
			MaxUsers:         limits.MaxUsers,
			MaxProjects:      limits.MaxProjects,
			Status:           model.TenantStatusActive,
		}
		if createErr := tx.Create(&tenant).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.Conflict, "subdomain already taken")
			}
			return apperr.FromDB(createErr, "tenant not found")
		}

		admin := model.User{
			TenantID:     &tenant.ID,
			Email:        strings.ToLower(in.AdminEmail),
			PasswordHash: string(hash),
			FullName:     in.AdminFullName,
			Role:         model.RoleTenantAdmin,
			IsActive:     true,
		}
		if createErr := tx.Create(&admin).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.Conflict, "email already registered")
			}
			return apperr.FromDB(createErr, "user not found")
		}

		// Mandatory inside the workflow: a failed audit write aborts
		// the whole registration.
		if auditErr := audit.RecordTx(tx, &tenant.ID, &admin.ID, model.ActionRegisterTenant, "tenant", &tenant.ID); auditErr != nil {
			return apperr.Wrap(apperr.Internal, "registration failed", auditErr)
		}

		result.Tenant = tenant
		result.Admin = admin
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
