package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
)

const (
	stateCookie        = "oauth_state"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleUserInfo is the profile returned by Google's userinfo endpoint.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	HD            string `json:"hd"`
}

// GoogleLogin signs agency staff in with their Google Workspace account.
type GoogleLogin struct {
	oauth         *oauth2.Config
	userInfoURL   string
	allowedDomain string
	cookieName    string
	cookieSecure  bool
	redirectAfter string
	sessions      *Sessions
	profiles      Profiles
	events        Recorder
}

// NewGoogleLogin creates the staff login flow. baseURL is the public URL
// of this service.
func NewGoogleLogin(cfg config.AuthConfig, baseURL string, sessions *Sessions, profiles Profiles, events Recorder) *GoogleLogin {
	return &GoogleLogin{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  strings.TrimRight(baseURL, "/") + "/auth/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL:   defaultUserInfoURL,
		allowedDomain: strings.ToLower(cfg.AllowedDomain),
		cookieName:    cfg.CookieName,
		cookieSecure:  cfg.CookieSecure,
		redirectAfter: "/admin",
		sessions:      sessions,
		profiles:      profiles,
		events:        events,
	}
}

// HandleLogin redirects to Google's consent screen. GET /auth/login
func (g *GoogleLogin) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomID()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if g.allowedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", g.allowedDomain))
	}
	http.Redirect(w, r, g.oauth.AuthCodeURL(state, opts...), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow and starts a session.
// GET /auth/callback
func (g *GoogleLogin) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sc, err := r.Cookie(stateCookie)
	if err != nil || sc.Value == "" || r.URL.Query().Get("state") != sc.Value {
		log.Printf("[auth] state mismatch on callback")
		g.fail(w, r, "invalid_state", "")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		g.fail(w, r, "provider_error", errMsg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	token, err := g.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("[auth] code exchange failed: %v", err)
		g.fail(w, r, "exchange_failed", "")
		return
	}

	info, err := g.userInfo(ctx, token)
	if err != nil {
		log.Printf("[auth] userinfo failed: %v", err)
		g.fail(w, r, "userinfo_failed", "")
		return
	}

	if !g.domainAllowed(info) {
		g.fail(w, r, "domain_not_allowed", info.Email)
		return
	}

	prof, err := g.profiles.EnsureForLogin(ctx, info.Email, info.Name, info.Picture)
	if err != nil {
		log.Printf("[auth] ensure profile failed: %v", err)
		g.fail(w, r, "profile_failed", info.Email)
		return
	}

	sess, err := g.sessions.Start(ctx, prof.ID, prof.Email, info.Name, info.Picture)
	if err != nil {
		log.Printf("[auth] start session failed: %v", err)
		g.fail(w, r, "session_failed", info.Email)
		return
	}

	recordEvent(r, g.events, domain.EventLoginSuccess, domain.SeverityInfo, &prof.ID, nil)
	logger.Info("staff_login", "email", prof.Email)

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, g.redirectAfter, http.StatusTemporaryRedirect)
}

// HandleLogout ends the session. POST /auth/logout
func (g *GoogleLogin) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		if sess, err := g.sessions.Peek(r.Context(), c.Value); err == nil {
			recordEvent(r, g.events, domain.EventLogout, domain.SeverityInfo, &sess.UserID, nil)
		}
		if err := g.sessions.End(r.Context(), c.Value); err != nil {
			log.Printf("[auth] end session failed: %v", err)
		}
	}
	clearCookie(w, g.cookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (g *GoogleLogin) domainAllowed(info *GoogleUserInfo) bool {
	if !info.VerifiedEmail {
		return false
	}
	if g.allowedDomain == "" {
		return false
	}
	parts := strings.Split(strings.ToLower(info.Email), "@")
	return len(parts) == 2 && parts[1] == g.allowedDomain
}

func (g *GoogleLogin) fail(w http.ResponseWriter, r *http.Request, reason, email string) {
	details := map[string]any{"reason": reason}
	if email != "" {
		details["email"] = logger.RedactEmail(email)
	}
	recordEvent(r, g.events, domain.EventLoginFailure, domain.SeverityWarning, nil, details)
	http.Redirect(w, r, "/login?error="+reason, http.StatusTemporaryRedirect)
}

func (g *GoogleLogin) userInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	resp, err := g.oauth.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error: %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &info, nil
}

// ValidateCredentials probes Google's token endpoint with a dummy code so
// rotated client credentials are caught at boot rather than at first login.
func (g *GoogleLogin) ValidateCredentials(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"validation_probe"},
		"client_id":     {g.oauth.ClientID},
		"client_secret": {g.oauth.ClientSecret},
		"redirect_uri":  {g.oauth.RedirectURL},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	text := string(body)

	// A rejected grant means the client itself was accepted.
	if strings.Contains(text, "invalid_grant") || strings.Contains(text, "invalid_request") || strings.Contains(text, "redirect_uri_mismatch") {
		return nil
	}
	if strings.Contains(text, "invalid_client") {
		return errors.New("google oauth client_id or client_secret rejected")
	}
	return fmt.Errorf("unexpected response from token endpoint (HTTP %d)", resp.StatusCode)
}

// WithEndpoints points the flow at other OAuth and userinfo URLs.
func (g *GoogleLogin) WithEndpoints(ep oauth2.Endpoint, userInfoURL string) *GoogleLogin {
	g.oauth.Endpoint = ep
	g.userInfoURL = userInfoURL
	return g
}
