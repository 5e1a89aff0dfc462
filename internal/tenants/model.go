package tenants

import "time"

// Tenant is a customer organisation whose data is isolated from others.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan"`
	IsActive  bool      `json:"is_active"`
	UserCount int       `json:"user_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters narrows the tenant listing.
type ListFilters struct {
	Page    int
	PerPage int
	Search  string
}
