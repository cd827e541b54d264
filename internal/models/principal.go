package models

// Role is the capability class of an authenticated principal.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Principal is the verified identity produced by the auth collaborator.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
