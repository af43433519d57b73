package dto

import (
	"time"

	"github.com/stageflow/stageflow-api/internal/models"
)

// UserResponse is the public shape of a user account.
type UserResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"fullName"`
	Role      models.UserRole `json:"role"`
	Active    bool            `json:"active"`
	LastLogin *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewUserResponse strips credentials from a user record.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Active:    u.Active,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required"`
	Role     string `json:"role" validate:"required,user_role"`
}

// UpdateUserRequest edits mutable account fields.
type UpdateUserRequest struct {
	FullName *string `json:"fullName"`
	Role     *string `json:"role" validate:"omitempty,user_role"`
	Active   *bool   `json:"active"`
}

// UserQuery mirrors supported listing filters.
type UserQuery struct {
	Role      string
	Active    *bool
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}
