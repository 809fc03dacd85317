package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestGuard(t *testing.T, token string) *AdminGuard {
	t.Helper()
	hash, err := HashToken(token, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	g, err := NewAdminGuard(hash, zap.NewNop())
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return g
}

func TestAdminGuardVerify(t *testing.T) {
	g := newTestGuard(t, "s3cret")

	if err := g.Verify("s3cret"); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if err := g.Verify(" s3cret "); err != nil {
		t.Fatalf("expected surrounding space to be ignored, got %v", err)
	}
	if err := g.Verify("nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := g.Verify(""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty token, got %v", err)
	}
}

func TestAdminGuardDisabled(t *testing.T) {
	g, err := NewAdminGuard("", nil)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if g.Enabled() {
		t.Fatalf("guard without hash should be disabled")
	}
	if err := g.Verify("anything"); !errors.Is(err, ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestNewAdminGuardRejectsMalformedHash(t *testing.T) {
	if _, err := NewAdminGuard("not-a-bcrypt-hash", nil); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestAdminGuardRequire(t *testing.T) {
	g := newTestGuard(t, "s3cret")
	disabled, _ := NewAdminGuard("", nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		guard      *AdminGuard
		token      string
		wantStatus int
	}{
		{name: "valid", guard: g, token: "s3cret", wantStatus: http.StatusNoContent},
		{name: "wrong token", guard: g, token: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing token", guard: g, wantStatus: http.StatusUnauthorized},
		{name: "disabled", guard: disabled, token: "s3cret", wantStatus: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/banks/reload", nil)
			if tc.token != "" {
				req.Header.Set(AdminTokenHeader, tc.token)
			}
			w := httptest.NewRecorder()
			tc.guard.Require(ok).ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
