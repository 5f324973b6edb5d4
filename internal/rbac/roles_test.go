// internal/rbac/roles_test.go
package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleHasPermission(RoleAdmin, PermServiceAdmin))
	assert.True(t, RoleHasPermission(RoleOperator, PermFailoverWrite))
	assert.False(t, RoleHasPermission(RoleOperator, PermServiceAdmin))
	assert.True(t, RoleHasPermission(RoleViewer, PermFailoverRead))
	assert.False(t, RoleHasPermission(RoleViewer, PermFailoverWrite))
	assert.False(t, RoleHasPermission("intruder", PermFailoverRead))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleAdmin))
	assert.True(t, ValidRole(RoleOperator))
	assert.True(t, ValidRole(RoleViewer))
	assert.False(t, ValidRole("root"))
	assert.False(t, ValidRole(""))
}

func TestRolePermissions_Copy(t *testing.T) {
	perms := RolePermissions(RoleViewer)
	perms[PermFailoverWrite] = true

	assert.False(t, RoleHasPermission(RoleViewer, PermFailoverWrite))
	assert.Empty(t, RolePermissions("nobody"))
}

func TestRequirePermission(t *testing.T) {
	handler := RequirePermission(PermFailoverWrite)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	// No role on context.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Viewer cannot write.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), RoleViewer)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Operator can.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), RoleOperator)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
