package brief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/llm"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/security"
)

// WizardPrompt instructs the model to interview the visitor and finish with
// a machine-readable summary.
const WizardPrompt = `You help visitors of a web design and development agency describe their project.
Ask one short question at a time about: the type of project, the goals, the must-have features, the budget range and the timeline.
Do not ask for their name or email; the website collects those separately.
When you have enough information, thank them, summarize the project in two or three sentences and then append exactly one block:
<brief>{"project_type": "...", "goals": "...", "features": ["..."], "budget": "...", "timeline": "...", "summary": "..."}</brief>
Use plain strings in the JSON and leave a field empty if the visitor did not say.`

const completeReply = "Thanks, I have everything I need. Leave your name and email below and the team will get back to you."

var briefBlock = regexp.MustCompile(`(?s)<brief>\s*(\{.*?\})\s*</brief>`)

// Options configures the wizard.
type Options struct {
	NotifyEmail      string
	AdminURL         string
	SystemPrompt     string
	DraftTTL         time.Duration
	MaxTurns         int
	MaxMessageLength int
	Temperature      float64
	MaxTokens        int
}

// Service implements the project brief wizard.
type Service struct {
	repo      Repository
	drafts    DraftStore
	llm       llm.Completer
	sender    email.Sender
	templates *email.Templates
	opts      Options
	message   *security.Sanitizer
	field     *security.Sanitizer
	now       func() time.Time
}

// NewService creates a brief service. sender and templates may be nil, in
// which case submitted briefs are stored but not emailed.
func NewService(repo Repository, drafts DraftStore, completer llm.Completer, sender email.Sender, templates *email.Templates, opts Options) *Service {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = WizardPrompt
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 24 * time.Hour
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 30
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2000
	}
	return &Service{
		repo:      repo,
		drafts:    drafts,
		llm:       completer,
		sender:    sender,
		templates: templates,
		opts:      opts,
		message:   security.NewSanitizer(opts.MaxMessageLength),
		field:     security.NewSanitizer(500),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// StepResult is the wizard's answer to one visitor message.
type StepResult struct {
	SessionID string             `json:"session_id"`
	Reply     string             `json:"reply"`
	Complete  bool               `json:"complete"`
	Draft     *domain.BriefDraft `json:"draft,omitempty"`
}

// Step adds a visitor message to the session and returns the assistant's
// reply. An empty sessionID starts a new session.
func (s *Service) Step(ctx context.Context, sessionID, message string) (*StepResult, error) {
	message = s.message.Text(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.llm == nil {
		return nil, ErrUnavailable
	}

	now := s.now().UTC()
	var sess *domain.BriefSession
	if sessionID == "" {
		sess = &domain.BriefSession{ID: uuid.New().String(), CreatedAt: now}
	} else {
		var err error
		if sess, err = s.drafts.Get(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	if sess.Turns >= s.opts.MaxTurns {
		return nil, ErrTooManyTurns
	}

	sess.Messages = append(sess.Messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: message})
	msgs := make([]llm.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	resp, err := s.llm.Complete(ctx, llm.Request{
		System:      s.opts.SystemPrompt,
		Messages:    msgs,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("brief completion: %w", err)
	}

	reply, draft := ExtractDraft(resp.Content)
	if draft != nil {
		draft = s.cleanDraft(draft)
		sess.Draft = draft
		sess.Complete = true
		if reply == "" {
			reply = completeReply
		}
	}
	sess.Messages = append(sess.Messages, domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: reply})
	sess.Turns++
	sess.UpdatedAt = now

	if err := s.drafts.Save(ctx, sess, s.opts.DraftTTL); err != nil {
		return nil, err
	}
	if draft != nil {
		log.Printf("[brief.Service] session %s complete after %d turns", sess.ID, sess.Turns)
	}
	return &StepResult{SessionID: sess.ID, Reply: reply, Complete: sess.Complete, Draft: sess.Draft}, nil
}

// ExtractDraft removes the <brief> block from a model reply and decodes it.
// A malformed block is removed but yields no draft.
func ExtractDraft(content string) (string, *domain.BriefDraft) {
	m := briefBlock.FindStringSubmatch(content)
	if m == nil {
		return strings.TrimSpace(content), nil
	}
	visible := strings.TrimSpace(briefBlock.ReplaceAllString(content, ""))
	var d domain.BriefDraft
	if err := json.Unmarshal([]byte(m[1]), &d); err != nil {
		log.Printf("[brief.Service] discarding malformed brief block: %v", err)
		return visible, nil
	}
	return visible, &d
}

func (s *Service) cleanDraft(d *domain.BriefDraft) *domain.BriefDraft {
	out := &domain.BriefDraft{
		ProjectType: s.field.Text(d.ProjectType),
		Goals:       s.message.Text(d.Goals),
		Budget:      s.field.Text(d.Budget),
		Timeline:    s.field.Text(d.Timeline),
		Summary:     s.message.Text(d.Summary),
		Features:    []string{},
	}
	for _, f := range d.Features {
		if f = s.field.Text(f); f != "" && len(out.Features) < 20 {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// ContactInput identifies the visitor submitting a brief.
type ContactInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Company string `json:"company" validate:"max=200"`
}

// Submit turns a complete session into a stored brief and notifies the
// agency. The draft is removed afterwards.
func (s *Service) Submit(ctx context.Context, sessionID string, in ContactInput) (*domain.ProjectBrief, error) {
	in.Name = s.field.Text(in.Name)
	in.Email = security.NormalizeEmail(s.field.Text(in.Email))
	in.Company = s.field.Text(in.Company)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.drafts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Complete || sess.Draft == nil {
		return nil, ErrIncomplete
	}

	d := sess.Draft
	b := &domain.ProjectBrief{
		ID:          uuid.New().String(),
		SessionID:   sess.ID,
		ContactName: in.Name,
		Email:       in.Email,
		Company:     in.Company,
		ProjectType: d.ProjectType,
		Goals:       d.Goals,
		Features:    d.Features,
		Budget:      d.Budget,
		Timeline:    d.Timeline,
		Summary:     d.Summary,
		Transcript:  sess.Messages,
		Status:      domain.BriefSubmitted,
		CreatedAt:   s.now().UTC(),
	}
	if b.Features == nil {
		b.Features = []string{}
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	logger.Info("brief_submitted", "id", b.ID, "email", b.Email, "project_type", b.ProjectType)

	s.notify(ctx, b)
	if err := s.drafts.Delete(ctx, sess.ID); err != nil {
		log.Printf("[brief.Service] delete draft %s: %v", sess.ID, err)
	}
	return b, nil
}

func (s *Service) notify(ctx context.Context, b *domain.ProjectBrief) {
	if s.sender == nil || s.templates == nil || s.opts.NotifyEmail == "" {
		return
	}
	msg, err := s.templates.RenderMessage(email.TemplateBriefNotification, s.opts.NotifyEmail, map[string]any{
		"contact_name": b.ContactName,
		"email":        b.Email,
		"company":      b.Company,
		"project_type": b.ProjectType,
		"goals":        b.Goals,
		"features":     b.Features,
		"budget":       b.Budget,
		"timeline":     b.Timeline,
		"summary":      b.Summary,
		"admin_url":    strings.TrimRight(s.opts.AdminURL, "/") + "/admin/briefs/" + b.ID,
	})
	if err == nil {
		msg.ReplyTo = b.Email
		_, err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		log.Printf("[brief.Service] notification for %s failed: %v", b.ID, err)
	}
}

// List returns submitted briefs. Admin only.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.ProjectBrief, int, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, security.NewValidationError("status", "is invalid")
	}
	return s.repo.List(ctx, f)
}

// Get returns one brief with its transcript. Admin only.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.ProjectBrief, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// UpdateStatus marks a brief reviewed or converted. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, p domain.Principal, id string, status domain.BriefStatus) (*domain.ProjectBrief, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, security.NewValidationError("status", "is invalid")
	}
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	b.Status = status
	return b, nil
}
