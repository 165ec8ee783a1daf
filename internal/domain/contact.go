package domain

import "time"

// ContactStatus tracks a lead through the sales pipeline.
type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactQualified ContactStatus = "qualified"
	ContactConverted ContactStatus = "converted"
	ContactArchived  ContactStatus = "archived"
)

// Valid reports whether s is a known contact status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactContacted, ContactQualified, ContactConverted, ContactArchived:
		return true
	}
	return false
}

// ContactSubmission is a message sent through the site's contact form.
type ContactSubmission struct {
	ID        string        `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Company   string        `json:"company" db:"company"`
	Phone     string        `json:"phone" db:"phone"`
	Service   string        `json:"service" db:"service"`
	Budget    string        `json:"budget" db:"budget"`
	Message   string        `json:"message" db:"message"`
	Status    ContactStatus `json:"status" db:"status"`
	IPAddress string        `json:"ip_address" db:"ip_address"`
	UserAgent string        `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// RequestMeta describes the HTTP request a submission arrived on.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Path      string
}
