package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/service/profile"
	"github.com/brightpixel/agency-portal/internal/service/project"
	"github.com/brightpixel/agency-portal/internal/storage"
)

// GetMe returns the caller's profile.
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

// UpdateMe edits the caller's own name, company and phone.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in profile.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.checkMarkup(r, optional(map[string]*string{"full_name": in.FullName, "company": in.Company}))

	p, err := h.Profiles.UpdateOwn(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

// GetDashboard returns the admin overview for staff and the client
// overview for everyone else.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.IsAdmin() {
		h.AdminDashboard(w, r)
		return
	}
	ov, err := h.Dashboard.ClientOverview(r.Context(), p, "")
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ov)
}

// ListProjects lists the caller's projects, or every project for admins.
//
//	GET /api/projects?status=&search=&client_id=
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := project.ListFilter{
		ClientID: strings.TrimSpace(q.Get("client_id")),
		Status:   domain.ProjectStatus(q.Get("status")),
		Search:   security.Truncate(strings.TrimSpace(q.Get("search")), 100),
		Limit:    limit,
		Offset:   offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		httputil.BadRequest(w, "unknown status")
		return
	}
	items, total, err := h.Projects.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.Projects.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

func (h *Handlers) ListMilestones(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ms, err := h.Projects.ListMilestones(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, ms)
}

func (h *Handlers) ListTime(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	entries, err := h.Projects.ListTime(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, entries)
}

func (h *Handlers) TimeSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	sum, err := h.Projects.TimeSummary(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, sum)
}

// ListInvoices lists invoices. Clients never see drafts.
//
//	GET /api/invoices?status=&project_id=
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	f := invoice.ListFilter{
		ClientID:  strings.TrimSpace(q.Get("client_id")),
		ProjectID: strings.TrimSpace(q.Get("project_id")),
		Status:    domain.InvoiceStatus(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		httputil.BadRequest(w, "unknown status")
		return
	}
	items, total, err := h.Invoices.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, page(items, total, limit, offset))
}

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := h.Invoices.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, inv)
}

// Upload stores one file from the multipart field "file".
//
//	POST /api/uploads
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, storage.ErrNotConfigured)
		return
	}
	// Allow a little room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.Store.MaxBytes()+64<<10)
	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, storage.ErrTooLarge)
			return
		}
		httputil.BadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	obj, err := h.Store.Upload(r.Context(), principal(r).UserID, file)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, obj)
}

// DeleteUpload removes an upload and its variants. Admin only.
//
//	DELETE /api/uploads/{key...}
func (h *Handlers) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, storage.ErrNotConfigured)
		return
	}
	key := "uploads/" + chi.URLParam(r, "*")
	if err := h.Store.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}
