// internal/auth/middleware.go
package auth

import (
	"net/http"
	"strings"

	"github.com/FairForge/warden/internal/rbac"
)

// Middleware validates the Bearer token and puts the caller's role on
// the request context for the rbac layer
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := s.ValidateToken(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(rbac.WithRole(r.Context(), claims.Role)))
	})
}
