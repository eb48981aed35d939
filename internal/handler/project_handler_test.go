package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProject(t *testing.T, tenantID, createdBy uint, name string) *model.Project {
	t.Helper()
	project := &model.Project{
		TenantID:  tenantID,
		Name:      name,
		Status:    model.ProjectStatusActive,
		CreatedBy: createdBy,
	}
	require.NoError(t, database.DB.Create(project).Error)
	return project
}

func TestCreateProject(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	user := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)

	rec := doRequest(t, e, http.MethodPost, "/api/projects", tokenFor(t, user),
		map[string]string{"name": "Apollo", "description": "moonshot"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var stored model.Project
	require.NoError(t, database.DB.Where("name = ?", "Apollo").First(&stored).Error)
	assert.Equal(t, tenant.ID, stored.TenantID)
	assert.Equal(t, user.ID, stored.CreatedBy)
	assert.Equal(t, model.ProjectStatusActive, stored.Status)
	assert.EqualValues(t, 1, auditCount(t, model.ActionCreateProject))
}

func TestCreateProjectQuotaExceeded(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	user := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)

	// Free plan ceiling is 3 projects.
	for i := 0; i < 3; i++ {
		seedProject(t, tenant.ID, user.ID, fmt.Sprintf("p%d", i))
	}

	rec := doRequest(t, e, http.MethodPost, "/api/projects", tokenFor(t, user),
		map[string]string{"name": "overflow"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "subscription limit reached for projects", decodeEnvelope(t, rec).Message)

	var count int64
	require.NoError(t, database.DB.Model(&model.Project{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestCreateProjectRequiresName(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	user := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)

	rec := doRequest(t, e, http.MethodPost, "/api/projects", tokenFor(t, user), map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProjects(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	other := seedTenant(t, "beta", model.PlanFree)
	user := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)
	project := seedProject(t, tenant.ID, user.ID, "Apollo")
	seedProject(t, other.ID, user.ID, "Elsewhere")

	require.NoError(t, database.DB.Create(&model.Task{
		ProjectID: project.ID, TenantID: tenant.ID, Title: "t1",
		Priority: model.TaskPriorityMedium, Status: model.TaskStatusDone,
	}).Error)
	require.NoError(t, database.DB.Create(&model.Task{
		ProjectID: project.ID, TenantID: tenant.ID, Title: "t2",
		Priority: model.TaskPriorityMedium, Status: model.TaskStatusTodo,
	}).Error)

	rec := doRequest(t, e, http.MethodGet, "/api/projects", tokenFor(t, user), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, rec)
	projects, _ := data["projects"].([]interface{})
	require.Len(t, projects, 1)

	row, _ := projects[0].(map[string]interface{})
	require.NotNil(t, row)
	assert.Equal(t, "Apollo", row["name"])
	assert.Equal(t, "Test User", row["creator_name"])
	assert.EqualValues(t, 2, row["task_count"])
	assert.EqualValues(t, 1, row["completed_task_count"])
}

func TestGetProjectsSuperAdminTargetsTenant(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	user := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)
	super := seedUser(t, nil, "root@workgrid.test", model.RoleSuperAdmin)
	seedProject(t, tenant.ID, user.ID, "Apollo")

	rec := doRequest(t, e, http.MethodGet, fmt.Sprintf("/api/projects?tenantId=%d", tenant.ID), tokenFor(t, super), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, rec)
	projects, _ := data["projects"].([]interface{})
	require.Len(t, projects, 1)

	// Without a target tenant the request is malformed.
	rec = doRequest(t, e, http.MethodGet, "/api/projects", tokenFor(t, super), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProjectAcrossBoundaryIsNotFound(t *testing.T) {
	e := setupTest(t)
	tenantA := seedTenant(t, "acme", model.PlanFree)
	tenantB := seedTenant(t, "beta", model.PlanFree)
	owner := seedUser(t, &tenantA.ID, "bob@acme.test", model.RoleUser)
	outsider := seedUser(t, &tenantB.ID, "admin@beta.test", model.RoleTenantAdmin)
	project := seedProject(t, tenantA.ID, owner.ID, "Apollo")

	rec := doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, outsider),
		map[string]string{"name": "Hijacked"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "project not found", decodeEnvelope(t, rec).Message)

	var stored model.Project
	require.NoError(t, database.DB.First(&stored, project.ID).Error)
	assert.Equal(t, "Apollo", stored.Name)
	assert.Zero(t, auditCount(t, model.ActionUpdateProject))
}

func TestUpdateProjectOwnership(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	owner := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)
	other := seedUser(t, &tenant.ID, "carol@acme.test", model.RoleUser)
	admin := seedUser(t, &tenant.ID, "admin@acme.test", model.RoleTenantAdmin)
	project := seedProject(t, tenant.ID, owner.ID, "Apollo")

	// Another user in the same tenant can see it but not change it.
	rec := doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, other),
		map[string]string{"name": "Hijacked"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The creator can.
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, owner),
		map[string]string{"name": "Apollo 11"})
	require.Equal(t, http.StatusOK, rec.Code)

	// So can the tenant admin.
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, admin),
		map[string]string{"status": model.ProjectStatusArchived})
	require.Equal(t, http.StatusOK, rec.Code)

	var stored model.Project
	require.NoError(t, database.DB.First(&stored, project.ID).Error)
	assert.Equal(t, "Apollo 11", stored.Name)
	assert.Equal(t, model.ProjectStatusArchived, stored.Status)
}

func TestDeleteProjectCascadesTasks(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	admin := seedUser(t, &tenant.ID, "admin@acme.test", model.RoleTenantAdmin)
	project := seedProject(t, tenant.ID, admin.ID, "Apollo")

	require.NoError(t, database.DB.Create(&model.Task{
		ProjectID: project.ID, TenantID: tenant.ID, Title: "t1",
		Priority: model.TaskPriorityMedium, Status: model.TaskStatusTodo,
	}).Error)

	rec := doRequest(t, e, http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var projects, tasks int64
	require.NoError(t, database.DB.Model(&model.Project{}).Count(&projects).Error)
	require.NoError(t, database.DB.Model(&model.Task{}).Count(&tasks).Error)
	assert.Zero(t, projects)
	assert.Zero(t, tasks)
	assert.EqualValues(t, 1, auditCount(t, model.ActionDeleteProject))
}

func TestDeleteProjectForbiddenForNonOwner(t *testing.T) {
	e := setupTest(t)
	tenant := seedTenant(t, "acme", model.PlanFree)
	owner := seedUser(t, &tenant.ID, "bob@acme.test", model.RoleUser)
	other := seedUser(t, &tenant.ID, "carol@acme.test", model.RoleUser)
	project := seedProject(t, tenant.ID, owner.ID, "Apollo")

	rec := doRequest(t, e, http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), tokenFor(t, other), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var count int64
	require.NoError(t, database.DB.Model(&model.Project{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
