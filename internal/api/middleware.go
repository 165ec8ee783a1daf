package api

import (
	"log"
	"math"
	"net"
	"net/http"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/brightpixel/agency-portal/internal/auth"
	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
)

// securityHeaders sets the response headers every API response carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		hdr.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		hdr.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// realIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP, but only when
// the direct peer is one of the trusted proxies. Any other caller is keyed on
// its socket address whatever headers it sends.
func realIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	isTrusted := func(addr netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			peer, err := netip.ParseAddr(auth.ClientIP(r))
			if err != nil || !isTrusted(peer.Unmap()) {
				next.ServeHTTP(w, r)
				return
			}

			// Walk the chain right to left; the first hop not added by one
			// of our proxies is the client.
			client := ""
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				hops := strings.Split(xff, ",")
				for i := len(hops) - 1; i >= 0; i-- {
					addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
					if err != nil {
						break
					}
					client = addr.Unmap().String()
					if !isTrusted(addr.Unmap()) {
						break
					}
				}
			}
			if client == "" {
				if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
					client = addr.Unmap().String()
				}
			}
			if client != "" {
				r.RemoteAddr = net.JoinHostPort(client, "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseTrustedProxies accepts bare IPs and CIDRs. Invalid entries are logged
// and ignored.
func parseTrustedProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				log.Printf("[api] ignoring trusted proxy %q: %v", e, err)
				continue
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			log.Printf("[api] ignoring trusted proxy %q: %v", e, err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// rateLimit applies the named rule. Authenticated callers are keyed by user
// id, everyone else by client IP. A limiter failure lets the request through.
func (h *Handlers) rateLimit(name string) func(http.Handler) http.Handler {
	limiter := h.limiters[name]
	rule := h.rules[name]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID *string
			key := name + ":ip:" + auth.ClientIP(r)
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				key = name + ":user:" + p.UserID
				userID = &p.UserID
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Printf("[api] rate limiter %s unavailable: %v", name, err)
				next.ServeHTTP(w, r)
				return
			}

			reset := int(math.Ceil(d.ResetAfter.Seconds()))
			if reset < 1 {
				reset = 1
			}
			hdr := w.Header()
			hdr.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			hdr.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
			hdr.Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if !d.Allowed {
				hdr.Set("Retry-After", strconv.Itoa(reset))
				h.recordEvent(r, domain.EventRateLimited, domain.SeverityWarning, userID, map[string]any{
					"rule":   rule.Name,
					"limit":  rule.Limit,
					"window": rule.Window.String(),
				})
				httputil.ErrorWithCode(w, http.StatusTooManyRequests, "rate_limited",
					"too many requests, please try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recordEvent writes a security log entry for the request.
func (h *Handlers) recordEvent(r *http.Request, typ domain.SecurityEventType, sev domain.Severity, userID *string, details map[string]any) {
	if h.Events == nil {
		return
	}
	h.Events.Record(r.Context(), domain.SecurityLog{
		EventType: typ,
		Severity:  sev,
		UserID:    userID,
		IPAddress: auth.ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Details:   details,
	})
}

// checkMarkup records an input_rejected event when any of the named fields
// carried markup the sanitizer will strip. The request still proceeds with
// the cleaned values.
func (h *Handlers) checkMarkup(r *http.Request, fields map[string]string) {
	var hits []string
	for name, v := range fields {
		if v != "" && h.field.ContainsMarkup(v) {
			hits = append(hits, name)
		}
	}
	if len(hits) == 0 {
		return
	}
	sort.Strings(hits)
	var userID *string
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		userID = &p.UserID
	}
	h.recordEvent(r, domain.EventInputRejected, domain.SeverityWarning, userID, map[string]any{"fields": hits})
}

func meta(r *http.Request) domain.RequestMeta {
	return domain.RequestMeta{IPAddress: auth.ClientIP(r), UserAgent: r.UserAgent(), Path: r.URL.Path}
}

func principal(r *http.Request) domain.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
