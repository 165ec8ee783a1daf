package invoice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/security"
)

// Options configures invoice numbering and client emails.
type Options struct {
	AgencyName     string
	PortalURL      string
	Currency       string
	DefaultDueDays int
	MaxFieldLength int
}

// Service implements invoice business logic.
type Service struct {
	repo      Repository
	projects  Projects
	profiles  Profiles
	sender    email.Sender
	templates *email.Templates
	opts      Options
	sanitize  *security.Sanitizer
	now       func() time.Time
}

// NewService creates an invoice service. sender and templates may be nil,
// in which case sending an invoice does not email the client.
func NewService(repo Repository, projects Projects, profiles Profiles, sender email.Sender, templates *email.Templates, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.DefaultDueDays <= 0 {
		opts.DefaultDueDays = 30
	}
	return &Service{
		repo:      repo,
		projects:  projects,
		profiles:  profiles,
		sender:    sender,
		templates: templates,
		opts:      opts,
		sanitize:  security.NewSanitizer(opts.MaxFieldLength),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LineItemInput is one billed line.
type LineItemInput struct {
	Description    string `json:"description" validate:"required,max=500"`
	Quantity       int    `json:"quantity" validate:"gte=1,lte=100000"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0,lte=10000000000"`
}

// CreateInput holds the fields for a new invoice.
type CreateInput struct {
	ProjectID  string          `json:"project_id" validate:"required"`
	LineItems  []LineItemInput `json:"line_items" validate:"max=100,dive"`
	TaxRateBps int             `json:"tax_rate_bps" validate:"gte=0,lte=10000"`
	DueDate    string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes      string          `json:"notes" validate:"max=2000"`
}

// Create drafts an invoice for a project. Totals are derived from the line
// items; the number is INV-YYYY-NNNN.
func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Invoice, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if len(in.LineItems) == 0 {
		return nil, ErrNoLineItems
	}
	for i := range in.LineItems {
		in.LineItems[i].Description = s.sanitize.Text(in.LineItems[i].Description)
	}
	in.Notes = s.sanitize.Text(in.Notes)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	proj, err := s.projects.Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	seq, err := s.repo.NextSequence(ctx, now.Year())
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}

	inv := &domain.Invoice{
		ID:         uuid.New().String(),
		Number:     FormatNumber(now.Year(), seq),
		ProjectID:  proj.ID,
		ClientID:   proj.ClientID,
		Status:     domain.InvoiceDraft,
		Currency:   s.opts.Currency,
		TaxRateBps: in.TaxRateBps,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, li := range in.LineItems {
		inv.LineItems = append(inv.LineItems, domain.LineItem{
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
		})
	}
	if in.DueDate != "" {
		if d, err := time.Parse("2006-01-02", in.DueDate); err == nil {
			inv.DueAt = &d
		}
	}
	inv.Recalculate()

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	log.Printf("[invoice.Service] drafted %s for project %s total=%d", inv.Number, inv.ProjectID, inv.TotalCents)
	return inv, nil
}

// FormatNumber renders an invoice number such as INV-2025-0042.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}

// Get returns an invoice visible to p. Clients never see drafts or other
// clients' invoices.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && (inv.ClientID != p.UserID || inv.Status == domain.InvoiceDraft) {
		return nil, ErrNotFound
	}
	return inv, nil
}

// List returns the invoices visible to p.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Invoice, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, security.NewValidationError("status", "is invalid")
	}
	if !p.IsAdmin() {
		f.ClientID = p.UserID
		f.ExcludeDrafts = true
		if f.Status == domain.InvoiceDraft {
			return nil, 0, nil
		}
	}
	return s.repo.List(ctx, f)
}

// Send issues a draft invoice and emails the client. Email failures are
// logged and do not undo the status change.
func (s *Service) Send(ctx context.Context, p domain.Principal, id string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, p, id, domain.InvoiceSent, func(inv *domain.Invoice, now time.Time) {
		inv.IssuedAt = &now
		if inv.DueAt == nil {
			due := now.AddDate(0, 0, s.opts.DefaultDueDays)
			inv.DueAt = &due
		}
	}, domain.InvoiceDraft)
	if err != nil {
		return nil, err
	}
	s.notifyClient(ctx, inv)
	return inv, nil
}

// MarkPaid records payment of an open invoice.
func (s *Service) MarkPaid(ctx context.Context, p domain.Principal, id string) (*domain.Invoice, error) {
	return s.transition(ctx, p, id, domain.InvoicePaid, func(inv *domain.Invoice, now time.Time) {
		inv.PaidAt = &now
	}, domain.InvoiceSent, domain.InvoiceOverdue)
}

// Cancel voids an unpaid invoice.
func (s *Service) Cancel(ctx context.Context, p domain.Principal, id string) (*domain.Invoice, error) {
	return s.transition(ctx, p, id, domain.InvoiceCancelled, nil,
		domain.InvoiceDraft, domain.InvoiceSent, domain.InvoiceOverdue)
}

// MarkOverdue flags sent invoices whose due date is before now.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	n, err := s.repo.MarkOverdue(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		log.Printf("[invoice.Service] %d invoice(s) now overdue", n)
	}
	return n, nil
}

func (s *Service) transition(ctx context.Context, p domain.Principal, id string, next domain.InvoiceStatus,
	apply func(*domain.Invoice, time.Time), from ...domain.InvoiceStatus) (*domain.Invoice, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, st := range from {
		if inv.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, next)
	}

	now := s.now().UTC()
	prev := inv.Status
	inv.Status = next
	inv.UpdatedAt = now
	if apply != nil {
		apply(inv, now)
	}
	if err := s.repo.UpdateStatus(ctx, inv, prev); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, inv.Number)
		}
		return nil, err
	}
	log.Printf("[invoice.Service] %s -> %s", inv.Number, next)
	return inv, nil
}

func (s *Service) notifyClient(ctx context.Context, inv *domain.Invoice) {
	if s.sender == nil || s.templates == nil {
		return
	}
	client, err := s.profiles.Get(ctx, inv.ClientID)
	if err != nil {
		log.Printf("[invoice.Service] %s: client lookup failed, not emailed: %v", inv.Number, err)
		return
	}

	due := ""
	if inv.DueAt != nil {
		due = inv.DueAt.Format("January 2, 2006")
	}
	msg, err := s.templates.RenderMessage(email.TemplateInvoiceSent, client.Email, map[string]any{
		"client_name": client.FullName,
		"number":      inv.Number,
		"total_cents": strconv.FormatInt(inv.TotalCents, 10),
		"due_date":    due,
		"portal_url":  strings.TrimRight(s.opts.PortalURL, "/") + "/portal/invoices/" + inv.ID,
		"agency_name": s.opts.AgencyName,
	})
	if err != nil {
		log.Printf("[invoice.Service] %s: render email: %v", inv.Number, err)
		return
	}
	msg.Tags["invoice"] = inv.Number
	if _, err := s.sender.Send(ctx, msg); err != nil {
		log.Printf("[invoice.Service] %s: send email: %v", inv.Number, err)
	}
}
