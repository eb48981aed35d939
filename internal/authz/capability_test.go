package authz

import (
	"testing"

	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCapabilityMatrix(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		entity Entity
		verb   Verb
		want   Decision
	}{
		{"super admin can do anything", model.RoleSuperAdmin, EntityTenant, VerbDelete, Allow},
		{"tenant admin manages users", model.RoleTenantAdmin, EntityUser, VerbCreate, Allow},
		{"tenant admin deletes projects", model.RoleTenantAdmin, EntityProject, VerbDelete, Allow},
		{"tenant admin updates tenant", model.RoleTenantAdmin, EntityTenant, VerbUpdate, Allow},
		{"user reads projects", model.RoleUser, EntityProject, VerbRead, Allow},
		{"user creates projects", model.RoleUser, EntityProject, VerbCreate, Allow},
		{"user updates project only as owner", model.RoleUser, EntityProject, VerbUpdate, AllowOwner},
		{"user deletes task only as owner", model.RoleUser, EntityTask, VerbDelete, AllowOwner},
		{"user cannot create users", model.RoleUser, EntityUser, VerbCreate, Deny},
		{"user cannot delete users", model.RoleUser, EntityUser, VerbDelete, Deny},
		{"user cannot update tenant", model.RoleUser, EntityTenant, VerbUpdate, Deny},
		{"tenant admin cannot create tenants", model.RoleTenantAdmin, EntityTenant, VerbCreate, Deny},
		{"unknown role denied", "guest", EntityProject, VerbRead, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.entity, tt.verb))
		})
	}
}

func TestCanOrOwner(t *testing.T) {
	// AllowOwner resolves against the ownership fact.
	assert.True(t, CanOrOwner(model.RoleUser, EntityProject, VerbUpdate, true))
	assert.False(t, CanOrOwner(model.RoleUser, EntityProject, VerbUpdate, false))

	// Allow ignores ownership; tenant_admin acts on any in-tenant resource.
	assert.True(t, CanOrOwner(model.RoleTenantAdmin, EntityProject, VerbUpdate, false))

	// Deny stays denied even for owners.
	assert.False(t, CanOrOwner(model.RoleUser, EntityUser, VerbDelete, true))
}

func TestPrincipalSameTenant(t *testing.T) {
	tenantA := uint(1)

	p := &Principal{UserID: 7, TenantID: &tenantA, Role: model.RoleUser}
	assert.True(t, p.SameTenant(1))
	assert.False(t, p.SameTenant(2))
	assert.False(t, p.IsSuperAdmin())

	super := &Principal{UserID: 1, TenantID: nil, Role: model.RoleSuperAdmin}
	assert.True(t, super.IsSuperAdmin())
	assert.False(t, super.SameTenant(1))
}
