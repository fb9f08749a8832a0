package session

// Role is the base role assigned to a user by the backend.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEmployee   Role = "EMPLOYEE"
)

// IsAdmin reports whether the role grants administrative screens.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Identity is the last-known profile of the logged in user, as returned by
// GET /auth/me.
type Identity struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
	Nombre      string   `json:"nombre,omitempty"`
}

// Clone returns a deep copy. A nil receiver yields nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Permissions != nil {
		cp.Permissions = append([]string(nil), i.Permissions...)
	}
	return &cp
}

// DisplayName prefers the user's name and falls back to the email.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Nombre != "" {
		return i.Nombre
	}
	return i.Email
}
