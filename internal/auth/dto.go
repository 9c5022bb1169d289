package auth

import (
	"github.com/kiranalabs/merchant-admin-api/internal/users"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the opaque refresh secret being exchanged.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names the refresh token to revoke first.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ForgotPasswordRequest identifies the account requesting a reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest carries the reset token and the new credential.
type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse contains the token pair and user produced by login,
// registration and refresh.
type AuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// ForgotPasswordResponse is uniform for known and unknown emails; the
// one-time token is present only when an account matched.
type ForgotPasswordResponse struct {
	ResetToken string `json:"reset_token,omitempty"`
}
