package profile_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/profile"
)

// memRepo is an in-memory profile repository for unit testing.
type memRepo struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

func newMemRepo(ps ...domain.Profile) *memRepo {
	m := &memRepo{profiles: make(map[string]*domain.Profile)}
	for i := range ps {
		p := ps[i]
		m.profiles[p.ID] = &p
	}
	return m
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, profile.ErrNotFound
}

func (m *memRepo) Create(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u profile.UpdateFields) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Company != nil {
		p.Company = *u.Company
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) SetRole(_ context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return profile.ErrNotFound
	}
	p.Role = role
	return nil
}

func (m *memRepo) List(_ context.Context, f profile.ListFilter) ([]domain.Profile, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(p.FullName+p.Email, f.Search) {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

var (
	admin  = domain.Principal{UserID: "admin-1", Email: "boss@agency.com", Role: domain.RoleAdmin}
	client = domain.Principal{UserID: "client-1", Email: "jo@client.com", Role: domain.RoleClient}
)

func seeded() *memRepo {
	return newMemRepo(
		domain.Profile{ID: "admin-1", Email: "boss@agency.com", Role: domain.RoleAdmin},
		domain.Profile{ID: "client-1", Email: "jo@client.com", FullName: "Jo", Role: domain.RoleClient},
		domain.Profile{ID: "client-2", Email: "sam@other.com", FullName: "Sam", Role: domain.RoleClient},
	)
}

func TestEnsureForLogin_CreatesAdmin(t *testing.T) {
	repo := seeded()
	svc := profile.NewService(repo, 200)

	p, err := svc.EnsureForLogin(context.Background(), " New.Staff@Agency.com ", "New <b>Staff</b>", "https://img/x.png")
	if err != nil {
		t.Fatalf("EnsureForLogin: %v", err)
	}
	if p.Role != domain.RoleAdmin {
		t.Errorf("role = %s, want admin", p.Role)
	}
	if p.Email != "new.staff@agency.com" {
		t.Errorf("email = %q", p.Email)
	}
	if p.FullName != "New Staff" {
		t.Errorf("full name = %q", p.FullName)
	}

	again, err := svc.EnsureForLogin(context.Background(), "new.staff@agency.com", "New Staff", "")
	if err != nil {
		t.Fatalf("second EnsureForLogin: %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("second login created a new profile")
	}
}

func TestEnsureForLogin_PromotesExisting(t *testing.T) {
	repo := newMemRepo(domain.Profile{ID: "p1", Email: "dev@agency.com", Role: domain.RoleClient})
	svc := profile.NewService(repo, 200)

	p, err := svc.EnsureForLogin(context.Background(), "dev@agency.com", "Dev", "https://img/a.png")
	if err != nil {
		t.Fatalf("EnsureForLogin: %v", err)
	}
	if p.Role != domain.RoleAdmin || p.AvatarURL != "https://img/a.png" {
		t.Errorf("got %+v", p)
	}
	stored, _ := repo.Get(context.Background(), "p1")
	if stored.Role != domain.RoleAdmin {
		t.Errorf("stored role = %s", stored.Role)
	}
}

func TestUpdateOwn(t *testing.T) {
	svc := profile.NewService(seeded(), 200)
	name := `Jo <script>alert(1)</script>Smith`
	company := "Acme"
	p, err := svc.UpdateOwn(context.Background(), client, profile.UpdateInput{FullName: &name, Company: &company})
	if err != nil {
		t.Fatalf("UpdateOwn: %v", err)
	}
	if p.FullName != "Jo Smith" {
		t.Errorf("full name = %q", p.FullName)
	}
	if p.Company != "Acme" {
		t.Errorf("company = %q", p.Company)
	}
}

func TestUpdateOwn_Validation(t *testing.T) {
	svc := profile.NewService(seeded(), 200)

	phone := "call me maybe"
	_, err := svc.UpdateOwn(context.Background(), client, profile.UpdateInput{Phone: &phone})
	var ve *security.ValidationError
	if !errors.As(err, &ve) || ve.Fields["phone"] == "" {
		t.Fatalf("expected phone validation error, got %v", err)
	}

	empty := "<b></b>"
	_, err = svc.UpdateOwn(context.Background(), client, profile.UpdateInput{FullName: &empty})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestListClients(t *testing.T) {
	svc := profile.NewService(seeded(), 200)

	if _, _, err := svc.ListClients(context.Background(), client, profile.ListFilter{}); !errors.Is(err, profile.ErrForbidden) {
		t.Fatalf("client listing clients: err = %v", err)
	}
	list, total, err := svc.ListClients(context.Background(), admin, profile.ListFilter{})
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("got %d clients, want 2", total)
	}
	for _, p := range list {
		if p.Role != domain.RoleClient {
			t.Errorf("non-client %s in list", p.ID)
		}
	}
}

func TestSetRole(t *testing.T) {
	repo := seeded()
	svc := profile.NewService(repo, 200)
	ctx := context.Background()

	if _, err := svc.SetRole(ctx, client, "client-2", domain.RoleAdmin); !errors.Is(err, profile.ErrForbidden) {
		t.Errorf("client SetRole: err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, "client-2", "owner"); !errors.Is(err, profile.ErrInvalidRole) {
		t.Errorf("invalid role: err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, "admin-1", domain.RoleClient); !errors.Is(err, profile.ErrSelfDemote) {
		t.Errorf("self demote: err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, "missing", domain.RoleAdmin); !profile.IsNotFound(err) {
		t.Errorf("missing profile: err = %v", err)
	}

	p, err := svc.SetRole(ctx, admin, "client-2", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if p.Role != domain.RoleAdmin {
		t.Errorf("role = %s", p.Role)
	}
}
