package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/server/auth"
)

type ctxKey string

const identityKey ctxKey = "identity"

// requireAuth wraps h so it only runs for requests carrying a valid bearer
// token; the caller identity from the token claims lands in the context.
func (s *Server) requireAuth(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		identity, err := auth.GetIdentityFromToken(parts[1], s.jwtSecret)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		h(w, r.WithContext(ctx))
	})
}

// identityFromContext returns the authenticated caller identity.
func identityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok
}
