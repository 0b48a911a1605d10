package auth

import "time"

// User represents an account. TenantID is the home tenant; external
// identity-provider accounts are linked through ExternalID.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	TenantID     *int64     `json:"tenant_id"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	IsActive     bool       `json:"is_active"`
	ExternalID   *string    `json:"-"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
