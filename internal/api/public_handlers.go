package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/brief"
	"github.com/brightpixel/agency-portal/internal/service/contact"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// idParam returns the {id} route parameter. Malformed ids are answered with
// 404 since no such record can exist.
func idParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.NotFound(w, "not found")
		return "", false
	}
	return id, true
}

func page(items any, total, limit, offset int) httputil.Page {
	return httputil.Page{Items: items, Total: total, Limit: limit, Offset: offset}
}

type chatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
}

// PostChat answers one assistant turn.
//
//	POST /api/chat {message, history} → {reply}
func (h *Handlers) PostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.checkMarkup(r, map[string]string{"message": req.Message})

	reply, err := h.Chat.Reply(r.Context(), req.Message, req.History)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"reply": reply})
}

type briefStepRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// BriefStep advances the project brief wizard.
//
//	POST /api/brief/step {session_id, message}
func (h *Handlers) BriefStep(w http.ResponseWriter, r *http.Request) {
	var req briefStepRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.checkMarkup(r, map[string]string{"message": req.Message})

	res, err := h.Briefs.Step(r.Context(), strings.TrimSpace(req.SessionID), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

type briefSubmitRequest struct {
	SessionID string `json:"session_id"`
	brief.ContactInput
}

// BriefSubmit stores a completed brief.
//
//	POST /api/brief/submit {session_id, name, email, company}
func (h *Handlers) BriefSubmit(w http.ResponseWriter, r *http.Request) {
	var req briefSubmitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.checkMarkup(r, map[string]string{"name": req.Name, "company": req.Company})

	b, err := h.Briefs.Submit(r.Context(), strings.TrimSpace(req.SessionID), req.ContactInput)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"id": b.ID, "status": string(b.Status)})
}

// SubmitContact handles the marketing site's contact form.
//
//	POST /api/contact
func (h *Handlers) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, map[string]string{
		"name": in.Name, "company": in.Company, "service": in.Service,
		"budget": in.Budget, "message": in.Message,
	})

	c, err := h.Contacts.Submit(r.Context(), in, meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"ok": true, "id": c.ID})
}

// ListPublishedArticles lists the public blog.
//
//	GET /api/blog?tag=&search=&limit=&offset=
func (h *Handlers) ListPublishedArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := blog.ListFilter{
		Tag:    strings.TrimSpace(q.Get("tag")),
		Search: security.Truncate(strings.TrimSpace(q.Get("search")), 100),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.Blog.ListPublished(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

// GetArticleBySlug returns one published article.
//
//	GET /api/blog/{slug}
func (h *Handlers) GetArticleBySlug(w http.ResponseWriter, r *http.Request) {
	a, err := h.Blog.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}
