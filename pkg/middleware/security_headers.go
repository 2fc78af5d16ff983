package middleware

import "net/http"

// SecurityHeaders sets the standard hardening headers on every response.
// The engine serves JSON and file downloads only, so the CSP blocks all
// active content.
type SecurityHeaders struct {
	isDevelopment bool
}

// NewSecurityHeaders creates the security headers middleware. In development
// HSTS is skipped so plain-HTTP local setups keep working.
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{isDevelopment: isDevelopment}
}

// Middleware wraps an HTTP handler with security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy",
			"default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")
		w.Header().Set("X-Permitted-Cross-Domain-Policies", "none")

		if !sh.isDevelopment {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
