package contact

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/security"
)

// Options configures lead notifications.
type Options struct {
	NotifyEmail      string
	AgencyName       string
	AdminURL         string
	MaxMessageLength int
	MaxFieldLength   int
}

// Service implements contact form logic.
type Service struct {
	repo      Repository
	sender    email.Sender
	templates *email.Templates
	opts      Options
	field     *security.Sanitizer
	body      *security.Sanitizer
	now       func() time.Time
}

// NewService creates a contact service. sender and templates may be nil,
// in which case no emails are sent.
func NewService(repo Repository, sender email.Sender, templates *email.Templates, opts Options) *Service {
	return &Service{
		repo:      repo,
		sender:    sender,
		templates: templates,
		opts:      opts,
		field:     security.NewSanitizer(opts.MaxFieldLength),
		body:      security.NewSanitizer(opts.MaxMessageLength),
		now:       time.Now,
	}
}

// Input is a contact form post. Website is a honeypot that humans never
// see and bots fill in.
type Input struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Company string `json:"company" validate:"max=200"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Service string `json:"service" validate:"max=100"`
	Budget  string `json:"budget" validate:"max=100"`
	Message string `json:"message" validate:"required,min=10"`
	Website string `json:"website"`
}

// Submit stores a contact form post and sends the notification and the
// auto-reply. Honeypot hits get the same answer as real posts but are
// neither stored nor emailed. Email failures are logged, not returned.
func (s *Service) Submit(ctx context.Context, in Input, meta domain.RequestMeta) (*domain.ContactSubmission, error) {
	in.Name = s.field.Text(in.Name)
	in.Email = security.NormalizeEmail(s.field.Text(in.Email))
	in.Company = s.field.Text(in.Company)
	in.Phone = s.field.Text(in.Phone)
	in.Service = s.field.Text(in.Service)
	in.Budget = s.field.Text(in.Budget)
	in.Message = s.body.Text(in.Message)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	c := &domain.ContactSubmission{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Company:   in.Company,
		Phone:     in.Phone,
		Service:   in.Service,
		Budget:    in.Budget,
		Message:   in.Message,
		Status:    domain.ContactNew,
		IPAddress: meta.IPAddress,
		UserAgent: security.Truncate(meta.UserAgent, 512),
		CreatedAt: s.now().UTC(),
	}

	if strings.TrimSpace(in.Website) != "" {
		logger.Warn("contact_honeypot", "ip", meta.IPAddress, "email", c.Email)
		return c, nil
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.Info("contact_submitted", "id", c.ID, "email", c.Email, "service", c.Service)

	s.notify(ctx, c)
	return c, nil
}

func (s *Service) notify(ctx context.Context, c *domain.ContactSubmission) {
	if s.sender == nil || s.templates == nil {
		return
	}

	if s.opts.NotifyEmail != "" {
		msg, err := s.templates.RenderMessage(email.TemplateContactNotification, s.opts.NotifyEmail, map[string]any{
			"name":      c.Name,
			"email":     c.Email,
			"company":   c.Company,
			"phone":     c.Phone,
			"service":   c.Service,
			"budget":    c.Budget,
			"message":   c.Message,
			"admin_url": strings.TrimRight(s.opts.AdminURL, "/") + "/admin/contacts/" + c.ID,
		})
		if err == nil {
			msg.ReplyTo = c.Email
			_, err = s.sender.Send(ctx, msg)
		}
		if err != nil {
			log.Printf("[contact.Service] notification for %s failed: %v", c.ID, err)
		}
	}

	msg, err := s.templates.RenderMessage(email.TemplateContactAutoreply, c.Email, map[string]any{
		"name":        c.Name,
		"agency_name": s.opts.AgencyName,
	})
	if err == nil {
		_, err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		log.Printf("[contact.Service] auto-reply for %s failed: %v", c.ID, err)
	}
}

// List returns submissions. Admin only.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.ContactSubmission, int, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, security.NewValidationError("status", "is invalid")
	}
	f.Search = s.field.Text(f.Search)
	return s.repo.List(ctx, f)
}

// Get returns one submission. Admin only.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.ContactSubmission, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// UpdateStatus moves a lead through the pipeline. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, p domain.Principal, id string, status domain.ContactStatus) (*domain.ContactSubmission, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, security.NewValidationError("status", "is invalid")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	c.Status = status
	return c, nil
}

// Delete removes a submission. Admin only.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
