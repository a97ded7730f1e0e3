package obs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RoutePattern returns the chi route pattern matched for r, or "" when the
// router has not dispatched it. Global middlewares run before routing, so
// they must call this after next.ServeHTTP returns.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func routeLabel(r *http.Request, fallback string) string {
	if route := RoutePattern(r); route != "" {
		return route
	}
	return fallback
}
