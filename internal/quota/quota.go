// Package quota enforces per-tenant plan ceilings. Reserve must run
// inside the same transaction as the insert it guards so that two
// concurrent creations cannot both observe one free slot.
package quota

import (
	"github.com/jashinspires/WorkGrid/internal/apperr"
	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resource kinds with plan ceilings.
const (
	ResourceUsers    = "users"
	ResourceProjects = "projects"
)

// Limits holds the ceilings a subscription plan grants.
type Limits struct {
	MaxUsers    int
	MaxProjects int
}

var planLimits = map[string]Limits{
	model.PlanFree:       {MaxUsers: 5, MaxProjects: 3},
	model.PlanPro:        {MaxUsers: 25, MaxProjects: 15},
	model.PlanEnterprise: {MaxUsers: 100, MaxProjects: 100},
}

// LimitsFor returns the ceilings for a plan and whether the plan name
// is known.
func LimitsFor(plan string) (Limits, bool) {
	l, ok := planLimits[plan]
	return l, ok
}

// NormalizePlan maps unrecognized plan names to the free plan.
func NormalizePlan(plan string) string {
	if _, ok := planLimits[plan]; ok {
		return plan
	}
	return model.PlanFree
}

// Reserve checks that the tenant has a free slot for one more resource
// of the given kind. It locks the tenant row for the remainder of the
// transaction, so the recount and the caller's insert are atomic with
// respect to concurrent reservations against the same tenant.
//
// Returns nil when a slot is free, QuotaExceeded when the ceiling is
// reached, NotFound when the tenant row is missing.
func Reserve(tx *gorm.DB, tenantID uint, resource string) error {
	q := tx.Where("id = ?", tenantID)
	// SQLite has no FOR UPDATE; its single-writer transactions already
	// serialize the recount against the insert.
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var tenant model.Tenant
	if err := q.First(&tenant).Error; err != nil {
		return apperr.FromDB(err, "tenant not found")
	}

	var ceiling int64
	var count int64
	var countErr error

	switch resource {
	case ResourceUsers:
		ceiling = int64(tenant.MaxUsers)
		countErr = tx.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case ResourceProjects:
		ceiling = int64(tenant.MaxProjects)
		countErr = tx.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	default:
		return apperr.New(apperr.Internal, "unknown quota resource")
	}

	if countErr != nil {
		return apperr.FromDB(countErr, "tenant not found")
	}

	if count >= ceiling {
		prometheus.RecordQuotaRejection(resource)
		return apperr.New(apperr.QuotaExceeded, "subscription limit reached for "+resource)
	}
	return nil
}
