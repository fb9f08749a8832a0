package mockapi

import (
	"slices"
	"time"
)

const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleEmployee   = "EMPLOYEE"

	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

func validRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// User is a backend account. The password hash never leaves the package.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Nombre      string    `json:"nombre,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`

	passwordHash []byte
}

func (u *User) clone() *User {
	cp := *u
	cp.Permissions = slices.Clone(u.Permissions)
	if cp.Permissions == nil {
		cp.Permissions = []string{}
	}
	return &cp
}

// Me is the profile returned by GET /auth/me.
type Me struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Nombre      string   `json:"nombre,omitempty"`
	Permissions []string `json:"permissions"`
}

// Company is a tenant the user can act on behalf of.
type Company struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status"`
	OwnerUserID int64  `json:"ownerUserId"`

	members []int64
}

// Permission is an entry of the permission catalogue.
type Permission struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Nombre   string `json:"nombre"`
	Phone    string `json:"phone"`
	BaseRole string `json:"baseRole" validate:"required,oneof=SUPERADMIN ADMIN EMPLOYEE"`
}

// UpdateUserRequest is the body of PATCH /users/{id}. Absent fields are left
// untouched.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Nombre   *string `json:"nombre"`
	Phone    *string `json:"phone"`
	Status   *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	BaseRole *string `json:"baseRole" validate:"omitempty,oneof=SUPERADMIN ADMIN EMPLOYEE"`
}

// PermissionIDsRequest is the body of the user permission mutations.
type PermissionIDsRequest struct {
	PermissionIDs []int64 `json:"permissionIds" validate:"required"`
}
