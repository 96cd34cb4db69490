package entity

import "time"

const (
	UserRoleSuperAdmin = "super_admin"
	UserRoleAdmin      = "admin"
	UserRoleUser       = "user"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// DbUser represents a persisted user account.
type DbUser struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string    `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	Plan         string    `gorm:"column:plan;type:varchar(50);not null;default:free" json:"plan"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName overrides the default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds any administrative role.
func (u *DbUser) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin
}

// IsSuperAdmin reports whether the user is the bootstrap super admin.
func (u *DbUser) IsSuperAdmin() bool {
	if u == nil {
		return false
	}
	return u.Role == UserRoleSuperAdmin
}

// IsUnlimited reports whether the user's plan bypasses generation quotas.
func (u *DbUser) IsUnlimited() bool {
	if u == nil {
		return false
	}
	return u.Plan == PlanPro
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Plan        string    `json:"plan"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summarize converts a DbUser into its client-facing summary.
func (u *DbUser) Summarize() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Plan:        u.Plan,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	Role string `form:"role"`
}

// UserUpdates holds optional user fields for partial updates.
type UserUpdates struct {
	DisplayName  *string
	Role         *string
	Plan         *string
	PasswordHash *string
	IsActive     *bool
}

// ToMap converts the updates into a GORM update map.
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.Plan != nil {
		updates["plan"] = *u.Plan
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty reports whether no fields are set.
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
