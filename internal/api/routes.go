package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
)

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(realIP(parseTrustedProxies(h.Config.Server.TrustedProxies)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	// CORS allows credentials for the staff session cookie, so origins are explicit.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (no auth required)
	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/live", h.health.HandleLiveness)
	r.Get("/health/ready", h.health.HandleReadiness)

	// Auth routes (no auth required)
	r.Route("/auth", func(r chi.Router) {
		if h.Google != nil {
			r.Get("/login", h.Google.HandleLogin)
			r.Get("/callback", h.Google.HandleCallback)
			r.Get("/logout", h.Google.HandleLogout)
			r.Post("/logout", h.Google.HandleLogout)
		}
		r.Get("/session", h.Auth.SessionStatus)
	})

	r.Route("/api", func(r chi.Router) {
		// Public marketing-site endpoints, limited per client IP.
		r.With(h.rateLimit(ruleChat)).Post("/chat", h.PostChat)
		r.Route("/brief", func(r chi.Router) {
			r.Use(h.rateLimit(ruleBrief))
			r.Post("/step", h.BriefStep)
			r.Post("/submit", h.BriefSubmit)
		})
		r.With(h.rateLimit(ruleContact)).Post("/contact", h.SubmitContact)
		r.Route("/blog", func(r chi.Router) {
			r.Use(h.rateLimit(ruleAPI))
			r.Get("/", h.ListPublishedArticles)
			r.Get("/{slug}", h.GetArticleBySlug)
		})

		// Portal endpoints, limited per user.
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Authenticate)
			r.Use(h.rateLimit(ruleAPI))

			r.Get("/me", h.GetMe)
			r.Patch("/me", h.UpdateMe)
			r.Get("/dashboard", h.GetDashboard)

			r.Get("/projects", h.ListProjects)
			r.Get("/projects/{id}", h.GetProject)
			r.Get("/projects/{id}/milestones", h.ListMilestones)
			r.Get("/projects/{id}/time", h.ListTime)
			r.Get("/projects/{id}/time/summary", h.TimeSummary)

			r.Get("/invoices", h.ListInvoices)
			r.Get("/invoices/{id}", h.GetInvoice)

			r.With(h.rateLimit(ruleUpload)).Post("/uploads", h.Upload)

			r.Group(func(r chi.Router) {
				r.Use(h.Auth.RequireAdmin)
				r.With(h.rateLimit(ruleEmail)).Post("/email/send", h.SendEmail)
				r.Delete("/uploads/*", h.DeleteUpload)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.Auth.RequireAdmin)
				h.adminRoutes(r)
			})
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httputil.NotFound(w, "not found")
		})
	})

	return r
}

func (h *Handlers) adminRoutes(r chi.Router) {
	r.Get("/dashboard", h.AdminDashboard)
	r.Get("/clients/{id}/dashboard", h.ClientDashboard)

	r.Get("/clients", h.ListClients)
	r.Put("/users/{id}/role", h.SetRole)

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Get("/{id}", h.GetProject)
		r.Patch("/{id}", h.UpdateProject)
		r.Delete("/{id}", h.DeleteProject)
		r.Post("/{id}/status", h.TransitionProject)
		r.Get("/{id}/milestones", h.ListMilestones)
		r.Post("/{id}/milestones", h.AddMilestone)
		r.Get("/{id}/time", h.ListTime)
		r.Post("/{id}/time", h.LogTime)
	})
	r.Patch("/milestones/{id}", h.UpdateMilestone)
	r.Post("/milestones/{id}/complete", h.CompleteMilestone)
	r.Delete("/milestones/{id}", h.DeleteMilestone)
	r.Delete("/time/{id}", h.DeleteTime)

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.ListInvoices)
		r.Post("/", h.CreateInvoice)
		r.Get("/{id}", h.GetInvoice)
		r.Post("/{id}/send", h.SendInvoice)
		r.Post("/{id}/pay", h.PayInvoice)
		r.Post("/{id}/cancel", h.CancelInvoice)
	})

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", h.ListArticles)
		r.Post("/", h.CreateArticle)
		r.Post("/import", h.ImportFeeds)
		r.Get("/{id}", h.GetArticle)
		r.Patch("/{id}", h.UpdateArticle)
		r.Delete("/{id}", h.DeleteArticle)
		r.Post("/{id}/publish", h.PublishArticle)
		r.Post("/{id}/unpublish", h.UnpublishArticle)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.ListContacts)
		r.Get("/{id}", h.GetContact)
		r.Put("/{id}/status", h.UpdateContactStatus)
		r.Delete("/{id}", h.DeleteContact)
	})

	r.Route("/briefs", func(r chi.Router) {
		r.Get("/", h.ListBriefs)
		r.Get("/{id}", h.GetBrief)
		r.Put("/{id}/status", h.UpdateBriefStatus)
	})

	r.Get("/security-logs", h.ListSecurityLogs)
}
