package brief_test

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
	"github.com/brightpixel/agency-portal/internal/llm"
	"github.com/brightpixel/agency-portal/internal/service/brief"
)

// memRepo is an in-memory brief repository for unit testing.
type memRepo struct {
	mu     sync.Mutex
	briefs map[string]*domain.ProjectBrief
}

func newMemRepo() *memRepo {
	return &memRepo{briefs: make(map[string]*domain.ProjectBrief)}
}

func (m *memRepo) Create(_ context.Context, b *domain.ProjectBrief) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.briefs[b.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.ProjectBrief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.briefs[id]
	if !ok {
		return nil, brief.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f brief.ListFilter) ([]domain.ProjectBrief, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProjectBrief
	for _, b := range m.briefs {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status domain.BriefStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.briefs[id]
	if !ok {
		return brief.ErrNotFound
	}
	b.Status = status
	return nil
}

// scriptedLLM answers with its replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	requests []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return &llm.Response{Content: "Tell me more."}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.Response{Content: r}, nil
}

const finalReply = `Great, here is what I have: a new online store launching in spring.
<brief>{"project_type": "E-commerce <b>site</b>", "goals": "Sell handmade candles online", "features": ["Cart", "Stripe payments", ""], "budget": "$10k-$15k", "timeline": "3 months", "summary": "Online candle store"}</brief>`

var (
	admin  = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	client = domain.Principal{UserID: "client-1", Role: domain.RoleClient}
)

type fixture struct {
	svc    *brief.Service
	repo   *memRepo
	drafts *brief.MemoryDraftStore
	llm    *scriptedLLM
	sender *email.LogSender
}

func newFixture(t *testing.T, opts brief.Options, replies ...string) *fixture {
	t.Helper()
	tpl, err := email.NewTemplates()
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	f := &fixture{
		repo:   newMemRepo(),
		drafts: brief.NewMemoryDraftStore(),
		llm:    &scriptedLLM{replies: replies},
		sender: email.NewLogSender(config.EmailConfig{}),
	}
	if opts.NotifyEmail == "" {
		opts.NotifyEmail = "briefs@agency.test"
	}
	f.svc = brief.NewService(f.repo, f.drafts, f.llm, f.sender, tpl, opts)
	return f
}

func TestWizardFlow(t *testing.T) {
	f := newFixture(t, brief.Options{AdminURL: "https://portal.agency.test"}, "What kind of project is it?", finalReply)
	ctx := context.Background()

	first, err := f.svc.Step(ctx, "", "Hi, I need a <script>x()</script>website")
	if err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if first.SessionID == "" || first.Complete || first.Reply != "What kind of project is it?" {
		t.Fatalf("step 1 = %+v", first)
	}

	second, err := f.svc.Step(ctx, first.SessionID, "An online shop for my candles")
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if !second.Complete || second.Draft == nil {
		t.Fatalf("step 2 not complete: %+v", second)
	}
	if strings.Contains(second.Reply, "<brief>") {
		t.Errorf("brief block leaked into reply: %q", second.Reply)
	}
	if second.Draft.ProjectType != "E-commerce site" || len(second.Draft.Features) != 2 {
		t.Errorf("draft = %+v", second.Draft)
	}

	req := f.llm.requests[1]
	if req.System != brief.WizardPrompt || len(req.Messages) != 3 {
		t.Fatalf("second request = %+v", req)
	}
	if req.Messages[0].Content != "Hi, I need a website" {
		t.Errorf("first message not sanitized: %q", req.Messages[0].Content)
	}

	b, err := f.svc.Submit(ctx, first.SessionID, brief.ContactInput{Name: "Sam Lee", Email: "Sam@Candles.example", Company: "Wick & Co"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.Email != "sam@candles.example" || b.Status != domain.BriefSubmitted || b.Budget != "$10k-$15k" {
		t.Errorf("brief = %+v", b)
	}
	if len(b.Transcript) != 4 {
		t.Errorf("transcript has %d messages, want 4", len(b.Transcript))
	}

	sent := f.sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sent))
	}
	if sent[0].To != "briefs@agency.test" || sent[0].ReplyTo != "sam@candles.example" {
		t.Errorf("notification to=%q reply_to=%q", sent[0].To, sent[0].ReplyTo)
	}
	if !strings.Contains(sent[0].Text, "Stripe payments") || !strings.Contains(sent[0].Text, "/admin/briefs/"+b.ID) {
		t.Errorf("notification body = %s", sent[0].Text)
	}

	if _, err := f.drafts.Get(ctx, first.SessionID); !errors.Is(err, brief.ErrSessionNotFound) {
		t.Errorf("draft kept after submit: err = %v", err)
	}
	if _, err := f.svc.Submit(ctx, first.SessionID, brief.ContactInput{Name: "Sam", Email: "sam@candles.example"}); !errors.Is(err, brief.ErrSessionNotFound) {
		t.Errorf("second submit: err = %v", err)
	}
}

func TestSubmitIncomplete(t *testing.T) {
	f := newFixture(t, brief.Options{})
	ctx := context.Background()
	res, err := f.svc.Step(ctx, "", "hello")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	_, err = f.svc.Submit(ctx, res.SessionID, brief.ContactInput{Name: "Sam", Email: "sam@example.com"})
	if !errors.Is(err, brief.ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
	if _, err := f.svc.Submit(ctx, res.SessionID, brief.ContactInput{Name: "Sam", Email: "nope"}); err == nil || errors.Is(err, brief.ErrIncomplete) {
		t.Errorf("invalid email: err = %v", err)
	}
}

func TestStepErrors(t *testing.T) {
	f := newFixture(t, brief.Options{MaxTurns: 2})
	ctx := context.Background()

	if _, err := f.svc.Step(ctx, "", "   "); !errors.Is(err, brief.ErrEmptyMessage) {
		t.Errorf("empty message: err = %v", err)
	}
	if _, err := f.svc.Step(ctx, "missing", "hello"); !errors.Is(err, brief.ErrSessionNotFound) {
		t.Errorf("unknown session: err = %v", err)
	}

	res, _ := f.svc.Step(ctx, "", "one")
	if _, err := f.svc.Step(ctx, res.SessionID, "two"); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if _, err := f.svc.Step(ctx, res.SessionID, "three"); !errors.Is(err, brief.ErrTooManyTurns) {
		t.Errorf("third turn: err = %v", err)
	}

	noLLM := brief.NewService(newMemRepo(), brief.NewMemoryDraftStore(), nil, nil, nil, brief.Options{})
	if _, err := noLLM.Step(ctx, "", "hello"); !errors.Is(err, brief.ErrUnavailable) {
		t.Errorf("nil completer: err = %v", err)
	}
}

func TestDraftExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	drafts := brief.NewMemoryDraftStore().WithClock(func() time.Time { return now })
	svc := brief.NewService(newMemRepo(), drafts, &scriptedLLM{}, nil, nil, brief.Options{DraftTTL: time.Hour})
	ctx := context.Background()

	res, err := svc.Step(ctx, "", "hello")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	now = now.Add(59 * time.Minute)
	if _, err := svc.Step(ctx, res.SessionID, "still here"); err != nil {
		t.Fatalf("Step before expiry: %v", err)
	}
	now = now.Add(61 * time.Minute)
	if _, err := svc.Step(ctx, res.SessionID, "too late"); !errors.Is(err, brief.ErrSessionNotFound) {
		t.Errorf("after expiry: err = %v", err)
	}
}

func TestExtractDraft(t *testing.T) {
	reply, d := brief.ExtractDraft("No block here ")
	if reply != "No block here" || d != nil {
		t.Errorf("plain reply = %q, %v", reply, d)
	}

	reply, d = brief.ExtractDraft("Done!\n<brief>\n{not json}\n</brief>")
	if reply != "Done!" || d != nil {
		t.Errorf("malformed block = %q, %v", reply, d)
	}

	reply, d = brief.ExtractDraft(`<brief>{"project_type":"Landing page","features":["Form"]}</brief>`)
	if reply != "" || d == nil || d.ProjectType != "Landing page" {
		t.Errorf("block only = %q, %+v", reply, d)
	}
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t, brief.Options{}, finalReply)
	ctx := context.Background()
	res, _ := f.svc.Step(ctx, "", "I want a store")
	b, err := f.svc.Submit(ctx, res.SessionID, brief.ContactInput{Name: "Sam", Email: "sam@example.com"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, _, err := f.svc.List(ctx, client, brief.ListFilter{}); !errors.Is(err, brief.ErrForbidden) {
		t.Errorf("client List: err = %v", err)
	}
	if _, err := f.svc.Get(ctx, client, b.ID); !errors.Is(err, brief.ErrForbidden) {
		t.Errorf("client Get: err = %v", err)
	}

	list, total, err := f.svc.List(ctx, admin, brief.ListFilter{Status: domain.BriefSubmitted})
	if err != nil || total != 1 || list[0].ID != b.ID {
		t.Fatalf("List = %v, %d, %v", list, total, err)
	}
	up, err := f.svc.UpdateStatus(ctx, admin, b.ID, domain.BriefReviewed)
	if err != nil || up.Status != domain.BriefReviewed {
		t.Fatalf("UpdateStatus = %+v, %v", up, err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, b.ID, "lost"); err == nil {
		t.Errorf("invalid status accepted")
	}
	if _, err := f.svc.Get(ctx, admin, "missing"); !errors.Is(err, brief.ErrNotFound) {
		t.Errorf("Get missing: err = %v", err)
	}
}
