package profile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
)

// Service implements profile business logic.
type Service struct {
	repo     Repository
	sanitize *security.Sanitizer
}

// NewService creates a profile service. Free-text fields are cut to
// maxFieldLength runes.
func NewService(repo Repository, maxFieldLength int) *Service {
	return &Service{repo: repo, sanitize: security.NewSanitizer(maxFieldLength)}
}

// Get returns a single profile.
func (s *Service) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.repo.Get(ctx, id)
}

// IsNotFound reports whether err means the profile does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// EnsureForLogin returns the profile for a staff member signing in with
// Google, creating it on first login. Staff logins are restricted to the
// agency domain upstream, so the profile always carries the admin role.
func (s *Service) EnsureForLogin(ctx context.Context, email, name, avatarURL string) (*domain.Profile, error) {
	email = security.NormalizeEmail(email)
	if email == "" {
		return nil, security.NewValidationError("email", "is required")
	}

	p, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if p.Role != domain.RoleAdmin {
			if err := s.repo.SetRole(ctx, p.ID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("promote staff profile: %w", err)
			}
			log.Printf("[profile.Service] promoted %s to admin on staff login", p.ID)
			p.Role = domain.RoleAdmin
		}
		if p.AvatarURL == "" && avatarURL != "" {
			if updated, err := s.repo.Update(ctx, p.ID, UpdateFields{AvatarURL: &avatarURL}); err == nil {
				p = updated
			}
		}
		return p, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	now := time.Now().UTC()
	p = &domain.Profile{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  s.sanitize.Text(name),
		Role:      domain.RoleAdmin,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create staff profile: %w", err)
	}
	log.Printf("[profile.Service] created staff profile %s", p.ID)
	return p, nil
}

// UpdateInput holds the fields a user may change on their own profile.
type UpdateInput struct {
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Company  *string `json:"company" validate:"omitempty,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
}

// UpdateOwn updates the caller's profile. Text is sanitized before it is
// validated and stored.
func (s *Service) UpdateOwn(ctx context.Context, p domain.Principal, in UpdateInput) (*domain.Profile, error) {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := s.sanitize.Text(*v)
		return &out
	}
	in.FullName = clean(in.FullName)
	in.Company = clean(in.Company)
	in.Phone = clean(in.Phone)

	if err := security.Validate(in); err != nil {
		return nil, err
	}
	if in.FullName != nil && *in.FullName == "" {
		return nil, security.NewValidationError("full_name", "must not be empty")
	}

	return s.repo.Update(ctx, p.UserID, UpdateFields{
		FullName: in.FullName,
		Company:  in.Company,
		Phone:    in.Phone,
	})
}

// ListClients returns client profiles. Admin only.
func (s *Service) ListClients(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Profile, int, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	f.Role = domain.RoleClient
	f.Search = s.sanitize.Text(f.Search)
	return s.repo.List(ctx, f)
}

// SetRole changes another user's role. Admin only.
func (s *Service) SetRole(ctx context.Context, admin domain.Principal, id string, role domain.Role) (*domain.Profile, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if id == admin.UserID && role != domain.RoleAdmin {
		return nil, ErrSelfDemote
	}

	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	log.Printf("[profile.Service] %s changed role of %s to %s", admin.UserID, id, role)
	target.Role = role
	return target, nil
}
