package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleLevelAtLeast(t *testing.T) {
	assert.False(t, RoleLevelAtLeast(RoleEmploye, RoleDirecteur))
	assert.True(t, RoleLevelAtLeast(RoleAdmin, RoleResponsable))
	assert.True(t, RoleLevelAtLeast(RoleResponsable, RoleResponsable))
	assert.True(t, RoleLevelAtLeast(RoleSuperAdmin, RoleAdmin))
	assert.False(t, RoleLevelAtLeast(Role("stagiaire"), RoleEmploye))
	assert.False(t, RoleLevelAtLeast(RoleAdmin, Role("")))
}

func TestRoleLevelsAreStrictlyOrdered(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		require.Greater(t, roles[i].Level(), roles[i-1].Level(), "%s should outrank %s", roles[i], roles[i-1])
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"employe":      RoleEmploye,
		"Employé":      RoleEmploye,
		" RESPONSABLE": RoleResponsable,
		"directeur":    RoleDirecteur,
		"super-admin":  RoleSuperAdmin,
		"SuperAdmin":   RoleSuperAdmin,
		"super_admin":  RoleSuperAdmin,
	}
	for input, expected := range cases {
		role, err := ParseRole(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, role, input)
	}

	_, err := ParseRole("stagiaire")
	require.Error(t, err)
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleEmploye, ModuleWorkflows, ActionCreate))
	assert.False(t, HasPermission(RoleEmploye, ModuleWorkflows, ActionApprove))
	assert.True(t, HasPermission(RoleResponsable, ModuleWorkflows, ActionApprove))
	assert.False(t, HasPermission(RoleResponsable, ModuleSubsidiaries, ActionRead))
	assert.True(t, HasPermission(RoleDirecteur, ModuleSubsidiaries, ActionRead))
	assert.False(t, HasPermission(RoleAdmin, ModuleSubsidiaries, ActionDelete))
	assert.False(t, HasPermission(Role("inconnu"), ModuleAlerts, ActionRead))

	for _, module := range allModules {
		for _, action := range allActions {
			assert.True(t, HasPermission(RoleSuperAdmin, module, action), "%s:%s", module, action)
		}
	}
}

func TestHigherRolesKeepLowerGrants(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		lower, higher := roles[i-1], roles[i]
		for module, actions := range permissionTable[lower] {
			for action := range actions {
				assert.True(t, HasPermission(higher, module, action), "%s should keep %s:%s", higher, module, action)
			}
		}
	}
}

func TestCallerValid(t *testing.T) {
	assert.True(t, Caller{UserID: "u1", Role: RoleEmploye}.Valid())
	assert.False(t, Caller{UserID: "", Role: RoleEmploye}.Valid())
	assert.False(t, Caller{UserID: "u1", Role: Role("x")}.Valid())
}
