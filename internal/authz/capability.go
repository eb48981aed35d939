package authz

import (
	"github.com/jashinspires/WorkGrid/internal/model"
)

// Entity names for capability lookups.
type Entity string

const (
	EntityTenant  Entity = "tenant"
	EntityUser    Entity = "user"
	EntityProject Entity = "project"
	EntityTask    Entity = "task"
)

// Verb names for capability lookups.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Decision is the outcome of a capability lookup.
type Decision int

const (
	// Deny rejects the action outright.
	Deny Decision = iota
	// Allow grants the action on any in-tenant resource (any resource
	// at all for super_admin).
	Allow
	// AllowOwner grants the action only when the caller owns the
	// resource; what ownership means is defined per resource by the
	// governor.
	AllowOwner
)

type capKey struct {
	role   string
	entity Entity
	verb   Verb
}

// The capability matrix is the single source of truth for role
// permissions. Every governor consults it instead of re-deriving rules
// per route. Tenant creation is absent on purpose: tenants come into
// existence only through the provisioning workflow, and tenant rows are
// never deleted.
var capabilities = map[capKey]Decision{
	// tenant_admin: full control over in-tenant resources. Tenant
	// update is Allow here, but the governor restricts the reachable
	// fields to non-quota ones; plan/quota/status edits require
	// super_admin.
	{model.RoleTenantAdmin, EntityTenant, VerbRead}:    Allow,
	{model.RoleTenantAdmin, EntityTenant, VerbUpdate}:  Allow,
	{model.RoleTenantAdmin, EntityUser, VerbCreate}:    Allow,
	{model.RoleTenantAdmin, EntityUser, VerbRead}:      Allow,
	{model.RoleTenantAdmin, EntityUser, VerbUpdate}:    Allow,
	{model.RoleTenantAdmin, EntityUser, VerbDelete}:    Allow,
	{model.RoleTenantAdmin, EntityProject, VerbCreate}: Allow,
	{model.RoleTenantAdmin, EntityProject, VerbRead}:   Allow,
	{model.RoleTenantAdmin, EntityProject, VerbUpdate}: Allow,
	{model.RoleTenantAdmin, EntityProject, VerbDelete}: Allow,
	{model.RoleTenantAdmin, EntityTask, VerbCreate}:    Allow,
	{model.RoleTenantAdmin, EntityTask, VerbRead}:      Allow,
	{model.RoleTenantAdmin, EntityTask, VerbUpdate}:    Allow,
	{model.RoleTenantAdmin, EntityTask, VerbDelete}:    Allow,

	// user: read everything in-tenant, mutate only what they own.
	// Profile updates are modeled as AllowOwner on user; the governor
	// additionally strips role/is_active from the patch.
	{model.RoleUser, EntityTenant, VerbRead}:    Allow,
	{model.RoleUser, EntityUser, VerbRead}:      Allow,
	{model.RoleUser, EntityUser, VerbUpdate}:    AllowOwner,
	{model.RoleUser, EntityProject, VerbCreate}: Allow,
	{model.RoleUser, EntityProject, VerbRead}:   Allow,
	{model.RoleUser, EntityProject, VerbUpdate}: AllowOwner,
	{model.RoleUser, EntityProject, VerbDelete}: AllowOwner,
	{model.RoleUser, EntityTask, VerbCreate}:    Allow,
	{model.RoleUser, EntityTask, VerbRead}:      Allow,
	{model.RoleUser, EntityTask, VerbUpdate}:    AllowOwner,
	{model.RoleUser, EntityTask, VerbDelete}:    AllowOwner,
}

// Can looks up the capability decision for a role acting on an entity.
// super_admin is allowed everything across all tenants and is not in
// the table.
func Can(role string, entity Entity, verb Verb) Decision {
	if role == model.RoleSuperAdmin {
		return Allow
	}
	return capabilities[capKey{role, entity, verb}]
}

// CanOrOwner resolves an AllowOwner decision against a concrete
// ownership fact. Deny stays denied, Allow ignores ownership.
func CanOrOwner(role string, entity Entity, verb Verb, isOwner bool) bool {
	switch Can(role, entity, verb) {
	case Allow:
		return true
	case AllowOwner:
		return isOwner
	}
	return false
}
