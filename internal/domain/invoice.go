package domain

import "time"

// InvoiceStatus enumerates the lifecycle states of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// Open reports whether the invoice still awaits payment.
func (s InvoiceStatus) Open() bool {
	return s == InvoiceSent || s == InvoiceOverdue
}

// Line item bounds. At the limits a total stays far inside int64.
const (
	MaxLineItems          = 100
	MaxLineItemQuantity   = 100_000
	MaxLineItemPriceCents = 10_000_000_000
)

// LineItem is one billed line of an invoice.
type LineItem struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// TotalCents returns quantity times unit price.
func (li LineItem) TotalCents() int64 {
	return int64(li.Quantity) * li.UnitPriceCents
}

// Invoice bills a client for a project.
type Invoice struct {
	ID            string        `json:"id" db:"id"`
	Number        string        `json:"number" db:"number"`
	ProjectID     string        `json:"project_id" db:"project_id"`
	ClientID      string        `json:"client_id" db:"client_id"`
	Status        InvoiceStatus `json:"status" db:"status"`
	Currency      string        `json:"currency" db:"currency"`
	LineItems     []LineItem    `json:"line_items" db:"line_items"`
	SubtotalCents int64         `json:"subtotal_cents" db:"subtotal_cents"`
	TaxRateBps    int           `json:"tax_rate_bps" db:"tax_rate_bps"`
	TaxCents      int64         `json:"tax_cents" db:"tax_cents"`
	TotalCents    int64         `json:"total_cents" db:"total_cents"`
	IssuedAt      *time.Time    `json:"issued_at" db:"issued_at"`
	DueAt         *time.Time    `json:"due_at" db:"due_at"`
	PaidAt        *time.Time    `json:"paid_at" db:"paid_at"`
	Notes         string        `json:"notes" db:"notes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Recalculate derives subtotal, tax and total from the line items.
// Tax is rounded half up to the cent.
func (inv *Invoice) Recalculate() {
	var subtotal int64
	for _, li := range inv.LineItems {
		subtotal += li.TotalCents()
	}
	inv.SubtotalCents = subtotal
	bps := int64(inv.TaxRateBps)
	inv.TaxCents = subtotal/10000*bps + (subtotal%10000*bps+5000)/10000
	inv.TotalCents = subtotal + inv.TaxCents
}
