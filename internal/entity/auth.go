package entity

import "time"

// AuthRegisterRequest is the registration payload.
type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a session token plus the authenticated user.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// AuthStatusResponse reports whether any account exists yet.
type AuthStatusResponse struct {
	HasUser bool `json:"has_user"`
}

// UserListResponse is the paginated user listing.
type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}

// UserCreateRequest is the admin user-creation payload.
type UserCreateRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Plan        string `json:"plan"`
	IsActive    *bool  `json:"is_active"`
}

// UserUpdateRequest is the admin user-update payload. Nil fields are left
// untouched.
type UserUpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	Plan        *string `json:"plan"`
	IsActive    *bool   `json:"is_active"`
}
