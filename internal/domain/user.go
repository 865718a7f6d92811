package domain

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Principal is the authenticated caller as resolved by the identity middleware.
type Principal struct {
	UserID int64
	Role   UserRole
	Name   string
	Email  string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
