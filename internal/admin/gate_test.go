package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakangoksu/user-management/internal/auth"
	"github.com/hakangoksu/user-management/internal/user"
)

func gateRequest(userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDContextKey, userID)
	return req.WithContext(ctx)
}

func TestSessionGateAllowsValidPrincipal(t *testing.T) {
	principal := testUser(user.StatusActive)
	store := newMemStore(principal)
	revoker := &mockRevoker{}
	svc := newTestService(store, revoker)

	called := false
	handler := svc.SessionGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gateRequest(principal.ID))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, revoker.revoked)
}

func TestSessionGateRejectsBlockedPrincipal(t *testing.T) {
	principal := testUser(user.StatusBlocked)
	store := newMemStore(principal)
	revoker := &mockRevoker{}
	svc := newTestService(store, revoker)

	called := false
	handler := svc.SessionGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gateRequest(principal.ID))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []uuid.UUID{principal.ID}, revoker.revoked)

	var resp ActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.True(t, resp.Redirect)
	assert.Equal(t, "Your session is no longer valid.", resp.Message)
}

func TestSessionGateRejectsDeletedPrincipal(t *testing.T) {
	store := newMemStore()
	revoker := &mockRevoker{}
	svc := newTestService(store, revoker)
	principalID := uuid.New()

	handler := svc.SessionGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for a deleted principal")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gateRequest(principalID))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []uuid.UUID{principalID}, revoker.revoked)

	// Auth cookies are cleared alongside the session revocation
	clearedAuth := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" && c.MaxAge == -1 {
			clearedAuth = true
		}
	}
	assert.True(t, clearedAuth)
}

func TestSessionGatePassesThroughUnauthenticated(t *testing.T) {
	store := newMemStore()
	revoker := &mockRevoker{}
	svc := newTestService(store, revoker)

	called := false
	handler := svc.SessionGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))

	// No principal in context means authentication middleware owns the rejection
	assert.True(t, called)
	assert.Empty(t, revoker.revoked)
}
