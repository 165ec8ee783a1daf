package domain

import "time"

// Role controls what a signed-in user may see.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Profile is a portal user: an agency staff member or a client contact.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Company   string    `json:"company" db:"company"`
	Phone     string    `json:"phone" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	AvatarURL string    `json:"avatar_url" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin returns true for agency staff.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IsAdmin returns true for agency staff.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
