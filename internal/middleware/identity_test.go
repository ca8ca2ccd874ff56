package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bases-server/internal/shared/config"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	prev := config.GlobalConfig
	config.GlobalConfig = &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-test-secret-test-secret!",
			TokenExpiration: time.Hour,
		},
	}
	t.Cleanup(func() { config.GlobalConfig = prev })
}

func TestIdentityRoundTrip(t *testing.T) {
	setTestConfig(t)

	token, err := GenerateToken("p1", true)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var got *PlayerClaims
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PlayerFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil {
		t.Fatal("expected claims in context")
	}
	if got.PlayerID != "p1" || !got.Subscriber {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestIdentityRejectsMissingToken(t *testing.T) {
	setTestConfig(t)

	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bases", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIdentityRejectsGarbageToken(t *testing.T) {
	setTestConfig(t)

	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bases", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
