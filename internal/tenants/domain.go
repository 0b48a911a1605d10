package tenants

import "time"

// Tenant is an isolated customer organization. Tenants are never hard
// deleted; records only accrete.
type Tenant struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
