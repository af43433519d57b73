package models

import "time"

// UserRole is the coarse role attached to every account. ADMIN and RH
// are back-office roles; TUTEUR and STAGIAIRE are scoped to the
// stagiaires they supervise or own.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleRH        UserRole = "RH"
	RoleTuteur    UserRole = "TUTEUR"
	RoleStagiaire UserRole = "STAGIAIRE"
)

// User is one row of the users table. PasswordHash never serializes.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows and pages the user listing. Nil pointer fields
// mean "no filter".
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination rides in list response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
