package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/audit"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/brief"
	"github.com/brightpixel/agency-portal/internal/service/contact"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/service/profile"
	"github.com/brightpixel/agency-portal/internal/service/project"
)

// =============================================================================
// DASHBOARDS & USERS
// =============================================================================

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Dashboard.AdminOverview(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ov)
}

// ClientDashboard shows an admin what a given client sees.
//
//	GET /api/admin/clients/{id}/dashboard
func (h *Handlers) ClientDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ov, err := h.Dashboard.ClientOverview(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ov)
}

// ListClients lists profiles.
//
//	GET /api/admin/clients?role=&search=
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := profile.ListFilter{
		Role:   domain.Role(q.Get("role")),
		Search: security.Truncate(strings.TrimSpace(q.Get("search")), 100),
		Limit:  limit,
		Offset: offset,
	}
	if f.Role != "" && !f.Role.Valid() {
		httputil.BadRequest(w, "unknown role")
		return
	}
	items, total, err := h.Profiles.ListClients(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

// SetRole promotes or demotes a user.
//
//	PUT /api/admin/users/{id}/role {role}
func (h *Handlers) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	p, err := h.Profiles.SetRole(r.Context(), principal(r), id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[api] role of %s set to %s by %s", id, req.Role, principal(r).UserID)
	httputil.OK(w, p)
}

// =============================================================================
// PROJECTS, MILESTONES & TIME
// =============================================================================

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in project.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, map[string]string{"name": in.Name, "description": in.Description})

	p, err := h.Projects.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, p)
}

func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in project.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, optional(map[string]*string{"name": in.Name, "description": in.Description}))

	p, err := h.Projects.Update(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Projects.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

type statusRequest struct {
	Status string `json:"status"`
}

// TransitionProject moves a project along its lifecycle.
//
//	POST /api/admin/projects/{id}/status {status}
func (h *Handlers) TransitionProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	next := domain.ProjectStatus(req.Status)
	if !next.Valid() {
		writeError(w, security.NewValidationError("status", "is not a project status"))
		return
	}
	p, err := h.Projects.Transition(r.Context(), principal(r), id, next)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

func (h *Handlers) AddMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in project.MilestoneInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, map[string]string{"title": in.Title, "description": in.Description})

	m, err := h.Projects.AddMilestone(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, m)
}

func (h *Handlers) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in project.MilestoneUpdate
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, optional(map[string]*string{"title": in.Title, "description": in.Description}))

	m, err := h.Projects.UpdateMilestone(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, m)
}

func (h *Handlers) CompleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	m, err := h.Projects.CompleteMilestone(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, m)
}

func (h *Handlers) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Projects.DeleteMilestone(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) LogTime(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in project.TimeInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, map[string]string{"description": in.Description})

	e, err := h.Projects.LogTime(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, e)
}

func (h *Handlers) DeleteTime(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Projects.DeleteTime(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// =============================================================================
// INVOICES
// =============================================================================

func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoice.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	fields := map[string]string{"notes": in.Notes}
	for _, li := range in.LineItems {
		fields["line_items"] += li.Description
	}
	h.checkMarkup(r, fields)

	inv, err := h.Invoices.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, inv)
}

func (h *Handlers) SendInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, h.Invoices.Send)
}

func (h *Handlers) PayInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, h.Invoices.MarkPaid)
}

func (h *Handlers) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, h.Invoices.Cancel)
}

func (h *Handlers) invoiceAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, p domain.Principal, id string) (*domain.Invoice, error)) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := action(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, inv)
}

// =============================================================================
// ARTICLES
// =============================================================================

// ListArticles lists drafts and published articles.
//
//	GET /api/admin/articles?status=&tag=&search=
func (h *Handlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := blog.ListFilter{
		Status: domain.ArticleStatus(q.Get("status")),
		Tag:    strings.TrimSpace(q.Get("tag")),
		Search: security.Truncate(strings.TrimSpace(q.Get("search")), 100),
		Limit:  limit,
		Offset: offset,
	}
	switch f.Status {
	case "", domain.ArticleDraft, domain.ArticlePublished:
	default:
		httputil.BadRequest(w, "unknown status")
		return
	}
	items, total, err := h.Blog.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, err := h.Blog.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var in blog.ArticleInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, map[string]string{"title": in.Title, "excerpt": in.Excerpt})

	a, err := h.Blog.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, a)
}

func (h *Handlers) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in blog.ArticleUpdate
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, optional(map[string]*string{"title": in.Title, "excerpt": in.Excerpt}))

	a, err := h.Blog.Update(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) PublishArticle(w http.ResponseWriter, r *http.Request) {
	h.articleAction(w, r, h.Blog.Publish)
}

func (h *Handlers) UnpublishArticle(w http.ResponseWriter, r *http.Request) {
	h.articleAction(w, r, h.Blog.Unpublish)
}

func (h *Handlers) articleAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, p domain.Principal, id string) (*domain.Article, error)) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, err := action(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Blog.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

type importRequest struct {
	URL string `json:"url"`
}

type importResponse struct {
	blog.ImportResult
	Error string `json:"error,omitempty"`
}

// ImportFeeds pulls articles from one feed, or from every configured feed
// when the body is empty.
//
//	POST /api/admin/articles/import {url?}
func (h *Handlers) ImportFeeds(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "feed import is not configured")
		return
	}
	var req importRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}
	feeds := h.Config.Blog.Feeds
	if u := strings.TrimSpace(req.URL); u != "" {
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			writeError(w, security.NewValidationError("url", "must be an http(s) URL"))
			return
		}
		feeds = []string{u}
	}
	if len(feeds) == 0 {
		httputil.BadRequest(w, "no feeds configured")
		return
	}

	out := make([]importResponse, 0, len(feeds))
	for _, feed := range feeds {
		res, err := h.Importer.Import(r.Context(), feed)
		resp := importResponse{ImportResult: res}
		if err != nil {
			log.Printf("[api] import %s: %v", feed, err)
			resp.Feed = feed
			resp.Error = "feed could not be imported"
		}
		out = append(out, resp)
	}
	httputil.OK(w, map[string]any{"results": out})
}

// =============================================================================
// CONTACTS & BRIEFS
// =============================================================================

// ListContacts lists contact form submissions.
//
//	GET /api/admin/contacts?status=&search=
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := contact.ListFilter{
		Status: domain.ContactStatus(q.Get("status")),
		Search: security.Truncate(strings.TrimSpace(q.Get("search")), 100),
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		httputil.BadRequest(w, "unknown status")
		return
	}
	items, total, err := h.Contacts.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.Contacts.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	status := domain.ContactStatus(req.Status)
	if !status.Valid() {
		writeError(w, security.NewValidationError("status", "is not a contact status"))
		return
	}
	c, err := h.Contacts.UpdateStatus(r.Context(), principal(r), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Contacts.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) ListBriefs(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	f := brief.ListFilter{
		Status: domain.BriefStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		httputil.BadRequest(w, "unknown status")
		return
	}
	items, total, err := h.Briefs.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

func (h *Handlers) GetBrief(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, err := h.Briefs.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, b)
}

func (h *Handlers) UpdateBriefStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	status := domain.BriefStatus(req.Status)
	if !status.Valid() {
		writeError(w, security.NewValidationError("status", "is not a brief status"))
		return
	}
	b, err := h.Briefs.UpdateStatus(r.Context(), principal(r), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, b)
}

// =============================================================================
// SECURITY LOG & EMAIL
// =============================================================================

// ListSecurityLogs lists recorded security events, newest first.
//
//	GET /api/admin/security-logs?event_type=&severity=&user_id=&since=RFC3339
func (h *Handlers) ListSecurityLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, 50, 500)
	q := r.URL.Query()
	f := audit.ListFilter{
		EventType: domain.SecurityEventType(strings.TrimSpace(q.Get("event_type"))),
		Severity:  domain.Severity(strings.TrimSpace(q.Get("severity"))),
		UserID:    strings.TrimSpace(q.Get("user_id")),
		Limit:     limit,
		Offset:    offset,
	}
	if s := strings.TrimSpace(q.Get("since")); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httputil.BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		f.Since = &t
	}
	items, total, err := h.Events.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

type sendEmailRequest struct {
	To       string         `json:"to" validate:"required,email,max=254"`
	ReplyTo  string         `json:"reply_to" validate:"omitempty,email,max=254"`
	Subject  string         `json:"subject" validate:"required_without=Template,max=200"`
	HTML     string         `json:"html" validate:"required_without=Template"`
	Text     string         `json:"text"`
	Template string         `json:"template" validate:"max=100"`
	Data     map[string]any `json:"data"`
}

// SendEmail relays a message through the configured provider. The body is
// either raw HTML, sanitized before sending, or a named template.
//
//	POST /api/email/send {to, subject, html | template, data}
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.To = security.NormalizeEmail(req.To)
	req.ReplyTo = security.NormalizeEmail(req.ReplyTo)
	if err := security.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	var msg email.Message
	if req.Template != "" {
		if h.Templates == nil {
			writeError(w, email.ErrUnknownTemplate)
			return
		}
		m, err := h.Templates.RenderMessage(req.Template, req.To, req.Data)
		if err != nil {
			writeError(w, err)
			return
		}
		msg = m
	} else {
		msg = email.Message{
			To:      req.To,
			Subject: h.field.Text(req.Subject),
			HTML:    h.field.HTML(req.HTML),
			Text:    security.NewSanitizer(0).Text(req.Text),
			Tags:    map[string]string{"source": "admin"},
		}
	}
	msg.ReplyTo = req.ReplyTo

	id, err := h.Sender.Send(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[api] email sent to %s by %s (id=%s)", logger.RedactEmail(req.To), principal(r).UserID, id)
	httputil.OK(w, map[string]string{"message_id": id})
}

// optional collects the non-nil values of an update payload for markup checks.
func optional(fields map[string]*string) map[string]string {
	out := make(map[string]string, len(fields))
	for name, v := range fields {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}
