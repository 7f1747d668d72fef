package models

// Role is the closed set of membership roles a user can hold.
type Role string

const (
	RoleMember    Role = "member"
	RoleLeader    Role = "leader"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// roleRanks orders roles by authority. Unknown roles rank zero.
var roleRanks = map[Role]int{
	RoleMember:    1,
	RoleLeader:    2,
	RoleModerator: 3,
	RoleAdmin:     4,
}

// Rank returns the authority level of the role; higher outranks lower.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether the role holds the authority of the required role.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() >= required.Rank() && required.Rank() > 0
}
