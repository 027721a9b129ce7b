package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

// testConfig returns an API config with a valid JWT secret (>= 32 characters).
func testConfig(port int) Config {
	return Config{
		Port:         port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		JWT: JWTConfig{
			Secret:               testSecret,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
	}
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := testConfig(18080)

	// Zero deps: no engine, no journal. Liveness must still answer and
	// readiness must degrade rather than panic.
	server, err := NewServer(cfg, Deps{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
	}

	// Readiness reports 503 while no engine is attached
	resp2, err := http.Get(fmt.Sprintf("http://localhost:%d/health/ready", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()

	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, resp2.StatusCode)
	}

	// Shutdown
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shutdown in time")
	}
}

func TestServer_Port(t *testing.T) {
	server, err := NewServer(testConfig(9999), Deps{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if server.Port() != 9999 {
		t.Errorf("Expected port 9999, got %d", server.Port())
	}
}

func TestServer_DefaultConfig(t *testing.T) {
	cfg := Config{
		// Port and timeouts not set - should use defaults
		JWT: JWTConfig{
			Secret: testSecret,
		},
	}

	server, err := NewServer(cfg, Deps{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// After ApplyDefaults, port should be 8080
	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
}

func TestServer_StopIdempotent(t *testing.T) {
	server, err := NewServer(testConfig(18081), Deps{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// Stop on a never-started server is a no-op, and repeated calls
	// must not error.
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("First Stop() returned error: %v", err)
	}
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("Second Stop() returned error: %v", err)
	}
}

func TestServer_InvalidJWTSecret(t *testing.T) {
	t.Setenv(EnvAPISecret, "")

	cfg := Config{
		JWT: JWTConfig{
			Secret: "short", // Too short, should fail
		},
	}

	_, err := NewServer(cfg, Deps{})
	if err == nil {
		t.Fatal("Expected error for invalid JWT secret, got nil")
	}
	if !strings.Contains(err.Error(), EnvAPISecret) {
		t.Errorf("Expected error to name %s, got: %v", EnvAPISecret, err)
	}
}

func TestServer_SecretFromEnv(t *testing.T) {
	t.Setenv(EnvAPISecret, testSecret)

	// No secret in the config file; the env var alone must satisfy
	// NewServer.
	cfg := Config{}

	server, err := NewServer(cfg, Deps{})
	if err != nil {
		t.Fatalf("Failed to create server with env secret: %v", err)
	}
	if server == nil {
		t.Fatal("Expected server, got nil")
	}
}

func TestConfig_GetJWTSecret(t *testing.T) {
	tests := []struct {
		name         string
		envSecret    string
		configSecret string
		want         string
	}{
		{
			name:         "env var takes precedence",
			envSecret:    "env-secret-value",
			configSecret: "config-secret-value",
			want:         "env-secret-value",
		},
		{
			name:      "env var only",
			envSecret: "env-secret-value",
			want:      "env-secret-value",
		},
		{
			name:         "config only",
			configSecret: "config-secret-value",
			want:         "config-secret-value",
		},
		{
			name: "neither set",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPISecret, tt.envSecret)

			cfg := Config{JWT: JWTConfig{Secret: tt.configSecret}}
			if got := cfg.GetJWTSecret(); got != tt.want {
				t.Errorf("GetJWTSecret() = %q, want %q", got, tt.want)
			}

			wantHas := tt.want != ""
			if got := cfg.HasJWTSecret(); got != wantHas {
				t.Errorf("HasJWTSecret() = %v, want %v", got, wantHas)
			}
		})
	}
}
