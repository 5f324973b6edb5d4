// internal/rbac/middleware.go
package rbac

import (
	"context"
	"net/http"
)

type contextKey string

const roleKey contextKey = "role"

// WithRole stores the caller's role on the context. The auth layer
// calls this after verifying the token.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFromContext returns the caller's role, or "" if unauthenticated
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// RequirePermission rejects requests whose role lacks the permission:
// 401 with no role on the context, 403 with an insufficient one
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !RoleHasPermission(role, perm) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
