package apiapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	adminauthsvc "github.com/kazuki388/Threads/internal/services/adminauth"
)

func TestAdminAuthMiddlewareRejectsMissingToken(t *testing.T) {
	auth := adminauthsvc.NewService("secret", time.Hour)
	mw := AdminAuthMiddleware(auth, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/bans", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without a token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAdminAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	auth := adminauthsvc.NewService("secret", time.Hour)
	mw := AdminAuthMiddleware(auth, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/bans", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called on invalid token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAdminAuthMiddlewareFailsWhenUnconfigured(t *testing.T) {
	auth := adminauthsvc.NewService("", time.Hour)
	mw := AdminAuthMiddleware(auth, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/bans", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called when auth is unconfigured")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestAdminAuthMiddlewareSetsClaimsContext(t *testing.T) {
	auth := adminauthsvc.NewService("secret", time.Hour)
	mw := AdminAuthMiddleware(auth, zap.NewNop())

	token, err := auth.IssueToken("ops-admin", "admin")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := adminauthsvc.ClaimsFrom(r.Context())
		if !ok {
			t.Fatalf("claims missing in context")
		}
		if claims.Subject != "ops-admin" || claims.Role != "admin" {
			t.Fatalf("claims mismatch: %+v", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := extractBearerToken(tc.header)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("extractBearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
