package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wishory-lab/aiworkground/internal/identity"
	"github.com/wishory-lab/aiworkground/internal/store"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, caller *store.User)

// withAuth resolves the bearer credential before the handler runs.
// Auth failures stop at this boundary; they never reach the executor.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		caller, err := s.resolver.ResolveCaller(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
				return
			}
			writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		next(w, r, caller)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
