package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		holder   Role
		required Role
		want     bool
	}{
		{"super_admin satisfies user", RoleSuperAdmin, RoleUser, true},
		{"super_admin satisfies admin", RoleSuperAdmin, RoleAdmin, true},
		{"super_admin satisfies super_admin", RoleSuperAdmin, RoleSuperAdmin, true},
		{"admin satisfies user", RoleAdmin, RoleUser, true},
		{"admin satisfies admin", RoleAdmin, RoleAdmin, true},
		{"admin does not satisfy super_admin", RoleAdmin, RoleSuperAdmin, false},
		{"user satisfies user", RoleUser, RoleUser, true},
		{"user does not satisfy admin", RoleUser, RoleAdmin, false},
		{"user does not satisfy super_admin", RoleUser, RoleSuperAdmin, false},
		// Unknown tiers never satisfy a known requirement, even a low one.
		{"unknown role does not satisfy user", Role("editor"), RoleUser, false},
		{"empty role does not satisfy user", Role(""), RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.holder.Satisfies(tt.required))
		})
	}
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.True(t, RoleSuperAdmin.IsValid())
	assert.False(t, Role("editor").IsValid())
	assert.False(t, Role("").IsValid())
}
