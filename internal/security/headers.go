package security

import "net/http"

// apiHeaders is the fixed header set for a JSON-only API. Cart and session
// payloads are per-user, so nothing may be stored by intermediaries.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "same-site"},
	{"Cache-Control", "no-store"},
}

// Headers adds apiHeaders to every response when Enable is set. Behind a
// TLS-terminating proxy, Strict-Transport-Security is added as well.
type Headers struct {
	Enable bool
}

// Middleware attaches the security headers before the handler runs so a
// handler may still override them.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		for _, kv := range apiHeaders {
			header.Set(kv[0], kv[1])
		}
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
