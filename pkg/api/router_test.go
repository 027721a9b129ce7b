package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/api/handlers"
	"github.com/marmos91/zcore/pkg/engine/sim"
	"github.com/marmos91/zcore/pkg/zfs"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	eng, err := sim.New(sim.Config{})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	if err := eng.CreatePool("tank"); err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	return Deps{
		Client:      zfs.New(eng),
		Credentials: auth.Credentials{Username: "admin", PasswordHash: hash},
	}
}

func newTestRouter(t *testing.T, deps Deps) (http.Handler, *auth.JWTService) {
	t.Helper()
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret, Issuer: "zcore"})
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}
	return NewRouter(deps, jwtService), jwtService
}

func adminToken(t *testing.T, jwtService *auth.JWTService) string {
	t.Helper()
	pair, err := jwtService.GenerateTokenPair("admin", "admin")
	if err != nil {
		t.Fatalf("Failed to generate token pair: %v", err)
	}
	return pair.AccessToken
}

func TestRouter_HealthEndpointsAreOpen(t *testing.T) {
	router, _ := newTestRouter(t, newTestDeps(t))

	for _, path := range []string{"/health", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d, body = %s", path, w.Code, http.StatusOK, w.Body.String())
		}
	}
}

func TestRouter_RootRedirectsToHealth(t *testing.T) {
	router, _ := newTestRouter(t, newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "/health" {
		t.Errorf("Location = %s, want /health", loc)
	}
}

func TestRouter_ManagementRequiresAdmin(t *testing.T) {
	deps := newTestDeps(t)
	if err := deps.Client.Create(context.Background(), "tank/a", nil); err != nil {
		t.Fatalf("Failed to create filesystem: %v", err)
	}
	router, jwtService := newTestRouter(t, deps)

	body, _ := json.Marshal(handlers.CreateSnapshotsRequest{Snapshots: []string{"tank/a@s1"}})
	newRequest := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshots", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newRequest())

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("non-admin token", func(t *testing.T) {
		pair, err := jwtService.GenerateTokenPair("viewer", "user")
		if err != nil {
			t.Fatalf("Failed to generate token pair: %v", err)
		}

		req := newRequest()
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("admin token", func(t *testing.T) {
		req := newRequest()
		req.Header.Set("Authorization", "Bearer "+adminToken(t, jwtService))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want %d, body = %s", w.Code, http.StatusCreated, w.Body.String())
		}
	})
}

func TestRouter_LoginFlow(t *testing.T) {
	router, _ := newTestRouter(t, newTestDeps(t))

	// Login with the configured credential
	body, _ := json.Marshal(handlers.LoginRequest{Username: "admin", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Login status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var login handlers.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("Failed to unmarshal login response: %v", err)
	}

	// The returned access token opens the authenticated routes
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Me status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var me handlers.UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("Failed to unmarshal me response: %v", err)
	}
	if me.Username != "admin" || me.Role != "admin" {
		t.Errorf("Me = %+v, want admin/admin", me)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Run("absent without a registry", func(t *testing.T) {
		router, _ := newTestRouter(t, newTestDeps(t))

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("served from the registry", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.Registry = prometheus.NewRegistry()
		router, _ := newTestRouter(t, deps)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestRouter_JournalDisabled(t *testing.T) {
	router, jwtService := newTestRouter(t, newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwtService))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d, body = %s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}
}
