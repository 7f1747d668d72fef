package models

import "testing"

func TestRoleAtLeast(t *testing.T) {
	cases := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"admin outranks moderator", RoleAdmin, RoleModerator, true},
		{"moderator meets moderator", RoleModerator, RoleModerator, true},
		{"leader below moderator", RoleLeader, RoleModerator, false},
		{"member below leader", RoleMember, RoleLeader, false},
		{"unknown role never qualifies", Role("guest"), RoleMember, false},
		{"unknown requirement never met", RoleAdmin, Role("owner"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.role.AtLeast(tc.required); got != tc.want {
				t.Fatalf("%s.AtLeast(%s) = %v, want %v", tc.role, tc.required, got, tc.want)
			}
		})
	}
}
