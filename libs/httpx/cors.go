package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists what a browser calendar client on another origin may do.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// corsRules is a CORSPolicy prepared for per-request lookups.
type corsRules struct {
	origins     map[string]bool
	anyOrigin   bool
	credentials bool
	static      http.Header
}

func newCORSRules(p CORSPolicy) corsRules {
	rules := corsRules{origins: make(map[string]bool), credentials: p.AllowCredentials, static: http.Header{}}
	for _, o := range p.AllowedOrigins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			rules.anyOrigin = true
		default:
			rules.origins[strings.ToLower(o)] = true
		}
	}
	if v := joinNonEmpty(p.AllowedMethods); v != "" {
		rules.static.Set("Access-Control-Allow-Methods", v)
	}
	if v := joinNonEmpty(p.AllowedHeaders); v != "" {
		rules.static.Set("Access-Control-Allow-Headers", v)
	}
	if secs := int(p.MaxAge / time.Second); secs > 0 {
		rules.static.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	if p.AllowCredentials {
		rules.static.Set("Access-Control-Allow-Credentials", "true")
	}
	return rules
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin.
// A wildcard echoes the origin when credentials are allowed, since browsers
// reject "*" together with credentials.
func (c corsRules) allowOrigin(origin string) (string, bool) {
	if c.origins[strings.ToLower(origin)] {
		return origin, true
	}
	if c.anyOrigin {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

// WithCORS answers preflights and decorates responses for allowed origins.
// An empty AllowedOrigins disables it.
func WithCORS(p CORSPolicy) Middleware {
	rules := newCORSRules(p)
	if !rules.anyOrigin && len(rules.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed, ok := rules.allowOrigin(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			for k, v := range rules.static {
				h[k] = v
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinNonEmpty(values []string) string {
	kept := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ", ")
}
