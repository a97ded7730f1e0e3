package auth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/store-bridge/internal/common"
)

// Middleware wires upstream identity into HTTP handlers.
type Middleware struct {
	Service *Service
}

// Authenticate attaches the token's caller to the request context when a
// readable bearer token is present. Requests without one pass through, since
// every route is public.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := common.BearerToken(r)
		if token == "" || m.Service == nil {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.Service.ParseAccessToken(token)
		if err != nil {
			m.Service.logger.Debug().Err(err).Msg("bearer_token_ignored")
			next.ServeHTTP(w, r)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", claims.Subject)
		})
		ctx := common.WithIdentity(r.Context(), common.Identity{Subject: claims.Subject, Username: claims.Username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
