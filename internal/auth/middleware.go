package auth

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
)

// Profiles resolves portal profiles for authenticated identities.
type Profiles interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	EnsureForLogin(ctx context.Context, email, name, avatarURL string) (*domain.Profile, error)
}

// Recorder stores security events. Record must not fail the request.
type Recorder interface {
	Record(ctx context.Context, ev domain.SecurityLog)
}

type ctxKey int

const principalKey ctxKey = iota

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// Middleware authenticates API requests.
type Middleware struct {
	verifier   *TokenVerifier
	sessions   *Sessions
	profiles   Profiles
	events     Recorder
	cookieName string
	warnBefore time.Duration
	isNotFound func(error) bool
}

// MiddlewareConfig wires a Middleware.
type MiddlewareConfig struct {
	Verifier   *TokenVerifier
	Sessions   *Sessions
	Profiles   Profiles
	Events     Recorder
	CookieName string
	WarnBefore time.Duration
	// IsNotFound reports whether a Profiles error means "no such profile".
	IsNotFound func(error) bool
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	isNotFound := cfg.IsNotFound
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}
	return &Middleware{
		verifier:   cfg.Verifier,
		sessions:   cfg.Sessions,
		profiles:   cfg.Profiles,
		events:     cfg.Events,
		cookieName: cfg.CookieName,
		warnBefore: cfg.WarnBefore,
		isNotFound: isNotFound,
	}
}

// Authenticate requires a valid bearer token or staff session cookie and
// puts the caller's Principal in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, status := m.resolve(w, r)
		if status != http.StatusOK {
			if status == http.StatusForbidden {
				httputil.Forbidden(w, "no portal profile for this account")
				return
			}
			if status == http.StatusInternalServerError {
				httputil.Error(w, status, "internal server error")
				return
			}
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin rejects callers that are not agency staff. It must run
// after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			httputil.Unauthorized(w)
			return
		}
		if !p.IsAdmin() {
			m.record(r, domain.EventAccessDenied, domain.SeverityWarning, &p.UserID, nil)
			httputil.Forbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionStatus reports whether the caller is signed in and how long the
// session has left. GET /auth/session
func (m *Middleware) SessionStatus(w http.ResponseWriter, r *http.Request) {
	unauth := map[string]any{"authenticated": false}

	if token := bearerToken(r); token != "" && m.verifier != nil {
		claims, err := m.verifier.Verify(token)
		if err != nil {
			httputil.OK(w, unauth)
			return
		}
		p, err := m.principalFor(r.Context(), claims.Subject)
		if err != nil {
			httputil.OK(w, unauth)
			return
		}
		left := time.Until(claims.ExpiresAt.Time)
		if left < 0 {
			left = 0
		}
		httputil.OK(w, map[string]any{
			"authenticated":      true,
			"user":               p,
			"expires_in_seconds": int(left.Seconds()),
			"warn":               left <= m.warnBefore,
		})
		return
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || m.sessions == nil {
		httputil.OK(w, unauth)
		return
	}
	sess, err := m.sessions.Peek(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			m.record(r, domain.EventSessionExpired, domain.SeverityInfo, nil, nil)
			clearCookie(w, m.cookieName)
		}
		httputil.OK(w, unauth)
		return
	}
	p, err := m.principalFor(r.Context(), sess.UserID)
	if err != nil {
		httputil.OK(w, unauth)
		return
	}
	left, warn := m.sessions.Remaining(sess, m.warnBefore)
	httputil.OK(w, map[string]any{
		"authenticated":      true,
		"user":               p,
		"expires_in_seconds": int(left.Seconds()),
		"warn":               warn,
	})
}

func (m *Middleware) resolve(w http.ResponseWriter, r *http.Request) (domain.Principal, int) {
	if token := bearerToken(r); token != "" {
		if m.verifier == nil {
			return domain.Principal{}, http.StatusUnauthorized
		}
		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.record(r, domain.EventTokenInvalid, domain.SeverityWarning, nil, map[string]any{"reason": err.Error()})
			return domain.Principal{}, http.StatusUnauthorized
		}
		return m.principalStatus(r, claims.Subject)
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" || m.sessions == nil {
		return domain.Principal{}, http.StatusUnauthorized
	}

	sess, err := m.sessions.Resume(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			m.record(r, domain.EventSessionExpired, domain.SeverityInfo, nil, nil)
			clearCookie(w, m.cookieName)
		} else if !errors.Is(err, ErrSessionNotFound) {
			log.Printf("[auth] session lookup failed: %v", err)
		}
		return domain.Principal{}, http.StatusUnauthorized
	}
	return m.principalStatus(r, sess.UserID)
}

func (m *Middleware) principalStatus(r *http.Request, userID string) (domain.Principal, int) {
	p, err := m.principalFor(r.Context(), userID)
	if err == nil {
		return p, http.StatusOK
	}
	if m.isNotFound(err) {
		m.record(r, domain.EventAccessDenied, domain.SeverityWarning, &userID, map[string]any{"reason": "no profile"})
		return domain.Principal{}, http.StatusForbidden
	}
	log.Printf("[auth] profile lookup for %s failed: %v", userID, err)
	return domain.Principal{}, http.StatusInternalServerError
}

// principalFor reads the role from the profile, never from token claims.
func (m *Middleware) principalFor(ctx context.Context, userID string) (domain.Principal, error) {
	prof, err := m.profiles.Get(ctx, userID)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{UserID: prof.ID, Email: prof.Email, Role: prof.Role}, nil
}

func (m *Middleware) record(r *http.Request, typ domain.SecurityEventType, sev domain.Severity, userID *string, details map[string]any) {
	recordEvent(r, m.events, typ, sev, userID, details)
}

func recordEvent(r *http.Request, rec Recorder, typ domain.SecurityEventType, sev domain.Severity, userID *string, details map[string]any) {
	if rec == nil {
		return
	}
	rec.Record(r.Context(), domain.SecurityLog{
		EventType: typ,
		Severity:  sev,
		UserID:    userID,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Details:   details,
	})
}

// ClientIP returns the request's remote IP without the port. chi's RealIP
// middleware has already applied X-Forwarded-For when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
