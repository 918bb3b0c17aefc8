package middleware

import (
	"net/http"
)

// APISecurityHeaders sets response headers for JSON-only endpoints.
type APISecurityHeaders struct {
	hsts bool
}

func NewAPISecurityHeaders(hsts bool) *APISecurityHeaders {
	return &APISecurityHeaders{hsts: hsts}
}

func (m *APISecurityHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if m.hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
