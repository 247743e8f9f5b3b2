// Package middleware holds HTTP middleware for surface apps.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware. Empty fields take the
// defaults of DefaultCORSConfig.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call the API. "*" allows
	// any origin.
	AllowOrigins []string

	// AllowMethods lists the methods allowed in preflight replies.
	AllowMethods []string

	// AllowHeaders lists the request headers allowed in preflight replies.
	AllowHeaders []string

	// ExposeHeaders lists the response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials allows cookies and HTTP auth. With a "*" origin,
	// the requesting origin is echoed instead.
	AllowCredentials bool

	// MaxAge is how long, in seconds, a preflight reply may be cached.
	MaxAge int
}

// DefaultCORSConfig allows any origin to call the API with a bearer token.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept"},
	}
}

// CORS answers preflight requests and sets the CORS headers of every other
// request.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = def.AllowOrigins
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = def.AllowMethods
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = def.AllowHeaders
	}

	anyOrigin := slices.Contains(cfg.AllowOrigins, "*")
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	exposed := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			h.Add("Vary", "Origin")

			switch {
			case anyOrigin && (origin == "" || !cfg.AllowCredentials):
				h.Set("Access-Control-Allow-Origin", "*")
			case anyOrigin || slices.Contains(cfg.AllowOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
			default:
				origin = ""
			}
			if origin != "" && cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
