package accounts

import (
	"time"

	"github.com/dcastillo/authcore-backend/pkg/db/models"
)

// SignupRequest captures the payload for registering a new account.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// SignupResult carries the id of the freshly created (unverified) account.
type SignupResult struct {
	UserID uint `json:"userId"`
}

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult contains the session token and sanitized user produced by a
// successful login.
type LoginResult struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}

// ResetRequest captures the payload for requesting a password reset code.
type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetConfirmRequest captures the emailed code plus the replacement password.
type ResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ChangePasswordRequest captures a logged-in password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// UpdateProfileRequest is a partial update; nil fields are left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1"`
}

// UserDTO is the transport shape that omits credentials and token columns.
type UserDTO struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateUserParams holds the data required by the repo to persist a new user.
type CreateUserParams struct {
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	VerificationToken string
}

// FromModel maps the persisted row to its public shape. The password hash and
// token columns never leave this package.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}
