package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

// Authenticate resolves the caller from an "Authorization: Bearer" header and
// stores it in the request context. Requests without the header continue as
// domain.Anonymous; a header with a bad token is refused with 401.
// A nil verifier treats every caller as anonymous.
func Authenticate(v *identity.Verifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || v == nil {
				next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), domain.Anonymous)))
				return
			}

			token, ok := identity.BearerToken(header)
			if !ok {
				respond.Fail(w, http.StatusUnauthorized, respond.CodeUnauthenticate, "expected a bearer token", nil)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				log.Debug("rejected session token", logger.Error(err))
				respond.Fail(w, http.StatusUnauthorized, respond.CodeUnauthenticate, "invalid or expired session", nil)
				return
			}
			r = r.WithContext(identity.WithIdentity(r.Context(), id))
			recordCaller(r)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignedIn refuses anonymous callers with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity.FromContext(r.Context()).SignedIn {
			respond.Fail(w, http.StatusUnauthorized, respond.CodeUnauthenticate, "sign in required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
