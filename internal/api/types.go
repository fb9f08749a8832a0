package api

import "time"

// Company is an entry of GET /companies.
type Company struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status"`
	OwnerUserID int64  `json:"ownerUserId"`
}

// Permission is an entry of the permission catalogue.
type Permission struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// User is a backend account as listed by GET /users.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Nombre      string    `json:"nombre,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewUser is the payload of a user creation.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nombre   string `json:"nombre,omitempty"`
	Phone    string `json:"phone,omitempty"`
	BaseRole string `json:"baseRole"`
}

// UserPatch lists the fields to change on a user. Nil fields are not sent.
type UserPatch struct {
	Email    *string
	Password *string
	Nombre   *string
	Phone    *string
	Status   *string
	BaseRole *string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token string
	Role  string
}

// ServerVersion is the response of GET /version.
type ServerVersion struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}
