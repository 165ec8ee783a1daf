package invoice_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
)

// memRepo is an in-memory invoice repository for unit testing.
type memRepo struct {
	mu       sync.Mutex
	invoices map[string]*domain.Invoice
	seq      map[int]int

	// beforeUpdate runs inside UpdateStatus, standing in for a concurrent
	// writer between the service's read and its write.
	beforeUpdate func(map[string]*domain.Invoice)
}

func newMemRepo() *memRepo {
	return &memRepo{invoices: make(map[string]*domain.Invoice), seq: make(map[int]int)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f invoice.ListFilter) ([]domain.Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if f.ClientID != "" && inv.ClientID != f.ClientID {
			continue
		}
		if f.ExcludeDrafts && inv.Status == domain.InvoiceDraft {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memRepo) NextSequence(_ context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[year]++
	return m.seq[year], nil
}

func (m *memRepo) UpdateStatus(_ context.Context, inv *domain.Invoice, from domain.InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeUpdate != nil {
		m.beforeUpdate(m.invoices)
	}
	cur, ok := m.invoices[inv.ID]
	if !ok {
		return invoice.ErrNotFound
	}
	if cur.Status != from {
		return invoice.ErrInvalidTransition
	}
	cur.Status = inv.Status
	cur.IssuedAt = inv.IssuedAt
	cur.DueAt = inv.DueAt
	cur.PaidAt = inv.PaidAt
	return nil
}

func (m *memRepo) MarkOverdue(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.invoices {
		if inv.Status == domain.InvoiceSent && inv.DueAt != nil && inv.DueAt.Before(now) {
			inv.Status = domain.InvoiceOverdue
			n++
		}
	}
	return n, nil
}

type fakeProjects map[string]*domain.Project

func (f fakeProjects) Get(_ context.Context, id string) (*domain.Project, error) {
	p, ok := f[id]
	if !ok {
		return nil, errors.New("project not found")
	}
	return p, nil
}

type fakeProfiles map[string]*domain.Profile

func (f fakeProfiles) Get(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return p, nil
}

var (
	admin   = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	client1 = domain.Principal{UserID: "client-1", Role: domain.RoleClient}
	client2 = domain.Principal{UserID: "client-2", Role: domain.RoleClient}
	fixedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc    *invoice.Service
	repo   *memRepo
	sender *email.LogSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tpl, err := email.NewTemplates()
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	repo := newMemRepo()
	sender := email.NewLogSender(config.EmailConfig{FromEmail: "billing@agency.com"})
	svc := invoice.NewService(repo,
		fakeProjects{"proj-1": {ID: "proj-1", ClientID: "client-1"}},
		fakeProfiles{"client-1": {ID: "client-1", Email: "jo@client.com", FullName: "Jo"}},
		sender, tpl,
		invoice.Options{AgencyName: "Bright Pixel", PortalURL: "https://portal.example.com/", MaxFieldLength: 500},
	).WithClock(func() time.Time { return fixedAt })
	return &fixture{svc: svc, repo: repo, sender: sender}
}

func (f *fixture) draft(t *testing.T) *domain.Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), admin, invoice.CreateInput{
		ProjectID: "proj-1",
		LineItems: []invoice.LineItemInput{
			{Description: "Design", Quantity: 10, UnitPriceCents: 12500},
			{Description: "Hosting <b>setup</b>", Quantity: 1, UnitPriceCents: 4999},
		},
		TaxRateBps: 825,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inv
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t)

	if inv.Number != "INV-2025-0001" {
		t.Errorf("number = %s", inv.Number)
	}
	if inv.SubtotalCents != 129999 {
		t.Errorf("subtotal = %d", inv.SubtotalCents)
	}
	// 129999 * 8.25% = 10724.9175, rounded to 10725.
	if inv.TaxCents != 10725 || inv.TotalCents != 140724 {
		t.Errorf("tax = %d total = %d", inv.TaxCents, inv.TotalCents)
	}
	if inv.ClientID != "client-1" || inv.Status != domain.InvoiceDraft {
		t.Errorf("got %+v", inv)
	}
	if inv.LineItems[1].Description != "Hosting setup" {
		t.Errorf("line item not sanitized: %q", inv.LineItems[1].Description)
	}

	second := f.draft(t)
	if second.Number != "INV-2025-0002" {
		t.Errorf("second number = %s", second.Number)
	}
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, client1, invoice.CreateInput{ProjectID: "proj-1"}); !errors.Is(err, invoice.ErrForbidden) {
		t.Errorf("client create: err = %v", err)
	}
	if _, err := f.svc.Create(ctx, admin, invoice.CreateInput{ProjectID: "proj-1"}); !errors.Is(err, invoice.ErrNoLineItems) {
		t.Errorf("no line items: err = %v", err)
	}
	_, err := f.svc.Create(ctx, admin, invoice.CreateInput{
		ProjectID: "proj-1",
		LineItems: []invoice.LineItemInput{{Description: "x", Quantity: 0, UnitPriceCents: 100}},
	})
	if err == nil {
		t.Errorf("zero quantity accepted")
	}

	// Values whose product would overflow int64 are refused.
	for _, li := range []invoice.LineItemInput{
		{Description: "x", Quantity: 100001, UnitPriceCents: 100},
		{Description: "x", Quantity: 1, UnitPriceCents: 10000000001},
		{Description: "x", Quantity: 1 << 40, UnitPriceCents: 1 << 40},
	} {
		_, err := f.svc.Create(ctx, admin, invoice.CreateInput{ProjectID: "proj-1", LineItems: []invoice.LineItemInput{li}})
		var verr *security.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("quantity %d price %d: err = %v, want validation error", li.Quantity, li.UnitPriceCents, err)
		}
	}
}

func TestClientVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t)

	if _, err := f.svc.Get(ctx, client1, inv.ID); !errors.Is(err, invoice.ErrNotFound) {
		t.Errorf("client saw a draft: err = %v", err)
	}
	if _, total, _ := f.svc.List(ctx, client1, invoice.ListFilter{}); total != 0 {
		t.Errorf("client listed %d drafts", total)
	}

	if _, err := f.svc.Send(ctx, admin, inv.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := f.svc.Get(ctx, client1, inv.ID); err != nil {
		t.Errorf("client Get after send: %v", err)
	}
	if _, err := f.svc.Get(ctx, client2, inv.ID); !errors.Is(err, invoice.ErrNotFound) {
		t.Errorf("other client Get: err = %v", err)
	}
}

func TestSendEmailsClient(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t)

	sent, err := f.svc.Send(context.Background(), admin, inv.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.IssuedAt == nil || !sent.IssuedAt.Equal(fixedAt) {
		t.Errorf("issued_at = %v", sent.IssuedAt)
	}
	if sent.DueAt == nil || !sent.DueAt.Equal(fixedAt.AddDate(0, 0, 30)) {
		t.Errorf("due_at = %v", sent.DueAt)
	}

	msgs := f.sender.Sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(msgs))
	}
	if msgs[0].To != "jo@client.com" || !strings.Contains(msgs[0].Subject, "INV-2025-0001") {
		t.Errorf("email = %+v", msgs[0])
	}
	if !strings.Contains(msgs[0].Text, "$1,407.24") {
		t.Errorf("email text missing total: %s", msgs[0].Text)
	}
	if !strings.Contains(msgs[0].Text, "https://portal.example.com/portal/invoices/"+inv.ID) {
		t.Errorf("email text missing link: %s", msgs[0].Text)
	}

	if _, err := f.svc.Send(context.Background(), admin, inv.ID); !errors.Is(err, invoice.ErrInvalidTransition) {
		t.Errorf("second send: err = %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t)

	if _, err := f.svc.MarkPaid(ctx, admin, inv.ID); !errors.Is(err, invoice.ErrInvalidTransition) {
		t.Errorf("paying a draft: err = %v", err)
	}
	if _, err := f.svc.Send(ctx, admin, inv.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	n, err := f.svc.MarkOverdue(ctx, fixedAt.AddDate(0, 0, 29))
	if err != nil || n != 0 {
		t.Fatalf("MarkOverdue before due: n=%d err=%v", n, err)
	}
	n, err = f.svc.MarkOverdue(ctx, fixedAt.AddDate(0, 0, 31))
	if err != nil || n != 1 {
		t.Fatalf("MarkOverdue after due: n=%d err=%v", n, err)
	}

	paid, err := f.svc.MarkPaid(ctx, admin, inv.ID)
	if err != nil {
		t.Fatalf("MarkPaid overdue: %v", err)
	}
	if paid.Status != domain.InvoicePaid || paid.PaidAt == nil {
		t.Errorf("got %+v", paid)
	}
	if _, err := f.svc.Cancel(ctx, admin, inv.ID); !errors.Is(err, invoice.ErrInvalidTransition) {
		t.Errorf("cancel paid: err = %v", err)
	}

	other := f.draft(t)
	cancelled, err := f.svc.Cancel(ctx, admin, other.ID)
	if err != nil || cancelled.Status != domain.InvoiceCancelled {
		t.Errorf("Cancel draft: %v %+v", err, cancelled)
	}
}

func TestConcurrentTransitionLoses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t)
	if _, err := f.svc.Send(ctx, admin, inv.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Another admin cancels after MarkPaid has read the invoice as sent.
	f.repo.beforeUpdate = func(all map[string]*domain.Invoice) {
		all[inv.ID].Status = domain.InvoiceCancelled
	}
	if _, err := f.svc.MarkPaid(ctx, admin, inv.ID); !errors.Is(err, invoice.ErrInvalidTransition) {
		t.Fatalf("MarkPaid after concurrent cancel: err = %v", err)
	}
	f.repo.beforeUpdate = nil

	got, err := f.repo.Get(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.InvoiceCancelled || got.PaidAt != nil {
		t.Errorf("stored invoice = %+v, want cancelled and unpaid", got)
	}
}
