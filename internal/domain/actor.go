package domain

type Role string

const (
	RoleUser         Role = "user"
	RoleCollaborator Role = "collaborator"
	RoleAdmin        Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleCollaborator, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor is the authenticated caller as asserted by the upstream gateway.
type Actor struct {
	UserID uint64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may read a resource owned by ownerID.
func (a Actor) CanAccess(ownerID uint64) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
