package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/api/middleware"
)

func setupAuthTest(t *testing.T) (*auth.JWTService, *AuthHandler) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	credentials := auth.Credentials{
		Username:     "admin",
		PasswordHash: hash,
	}

	jwtConfig := auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
		Issuer: "test",
	}
	jwtService, err := auth.NewJWTService(jwtConfig)
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}

	handler := NewAuthHandler(credentials, jwtService)
	return jwtService, handler
}

func TestAuthHandler_Login(t *testing.T) {
	_, handler := setupAuthTest(t)

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{
			name:       "valid credentials",
			body:       LoginRequest{Username: "admin", Password: "password123"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid password",
			body:       LoginRequest{Username: "admin", Password: "wrongpassword"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown username",
			body:       LoginRequest{Username: "root", Password: "password123"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing username",
			body:       LoginRequest{Password: "password123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       LoginRequest{Username: "admin"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Login() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.AccessToken == "" {
					t.Error("Expected access token to be set")
				}
				if resp.RefreshToken == "" {
					t.Error("Expected refresh token to be set")
				}
				if resp.User.Username != "admin" {
					t.Errorf("Expected username admin, got %s", resp.User.Username)
				}
				if resp.User.Role != "admin" {
					t.Errorf("Expected role admin, got %s", resp.User.Role)
				}
			}
		})
	}
}

func TestAuthHandler_Login_NoCredentials(t *testing.T) {
	jwtService, _ := setupAuthTest(t)
	handler := NewAuthHandler(auth.Credentials{}, jwtService)

	body, _ := json.Marshal(LoginRequest{Username: "admin", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Login() status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	jwtService, handler := setupAuthTest(t)

	tokenPair, err := jwtService.GenerateTokenPair("admin", "admin")
	if err != nil {
		t.Fatalf("Failed to generate token pair: %v", err)
	}

	tests := []struct {
		name         string
		refreshToken string
		wantStatus   int
	}{
		{
			name:         "valid refresh token",
			refreshToken: tokenPair.RefreshToken,
			wantStatus:   http.StatusOK,
		},
		{
			name:         "access token rejected",
			refreshToken: tokenPair.AccessToken,
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "invalid refresh token",
			refreshToken: "invalid-token",
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "empty refresh token",
			refreshToken: "",
			wantStatus:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(RefreshRequest{RefreshToken: tt.refreshToken})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Refresh(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Refresh() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.AccessToken == "" {
					t.Error("Expected new access token")
				}
			}
		})
	}
}

func TestAuthHandler_Refresh_RotatedCredential(t *testing.T) {
	jwtService, handler := setupAuthTest(t)

	// Token minted for a username the server no longer serves
	tokenPair, err := jwtService.GenerateTokenPair("olduser", "admin")
	if err != nil {
		t.Fatalf("Failed to generate token pair: %v", err)
	}

	body, _ := json.Marshal(RefreshRequest{RefreshToken: tokenPair.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Refresh(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Refresh() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	jwtService, handler := setupAuthTest(t)

	t.Run("authenticated", func(t *testing.T) {
		tokenPair, err := jwtService.GenerateTokenPair("admin", "admin")
		if err != nil {
			t.Fatalf("Failed to generate token pair: %v", err)
		}

		protected := middleware.JWTAuth(jwtService)(http.HandlerFunc(handler.Me))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+tokenPair.AccessToken)
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Me() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp UserResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Username != "admin" {
			t.Errorf("Expected username admin, got %s", resp.Username)
		}
		if resp.Role != "admin" {
			t.Errorf("Expected role admin, got %s", resp.Role)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		w := httptest.NewRecorder()

		handler.Me(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Me() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
