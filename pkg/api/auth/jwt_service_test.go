package auth

import (
	"testing"
	"time"
)

func TestNewJWTService_ValidConfig(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, err := NewJWTService(config)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if service == nil {
		t.Fatal("Expected service to be non-nil")
	}
}

func TestNewJWTService_EmptySecret(t *testing.T) {
	config := JWTConfig{
		Secret: "",
		Issuer: "test-issuer",
	}

	_, err := NewJWTService(config)
	if err == nil {
		t.Fatal("Expected error for empty secret")
	}
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	config := JWTConfig{
		Secret: "short",
		Issuer: "test-issuer",
	}

	_, err := NewJWTService(config)
	if err == nil {
		t.Fatal("Expected error for short secret")
	}
}

func TestGenerateTokenPair(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	tokenPair, err := service.GenerateTokenPair("admin", "admin")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if tokenPair.AccessToken == "" {
		t.Error("Expected non-empty access token")
	}
	if tokenPair.RefreshToken == "" {
		t.Error("Expected non-empty refresh token")
	}
	if tokenPair.TokenType != "Bearer" {
		t.Errorf("Expected TokenType 'Bearer', got '%s'", tokenPair.TokenType)
	}
	if tokenPair.ExpiresIn != int64(15*time.Minute/time.Second) {
		t.Errorf("Expected ExpiresIn %d, got %d", int64(15*time.Minute/time.Second), tokenPair.ExpiresIn)
	}
}

func TestValidateAccessToken(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	tokenPair, _ := service.GenerateTokenPair("admin", "admin")

	// Validate the access token
	claims, err := service.ValidateAccessToken(tokenPair.AccessToken)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("Expected username 'admin', got '%s'", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("Expected role 'admin', got '%s'", claims.Role)
	}
	if !claims.IsAdmin() {
		t.Error("Expected IsAdmin() to return true")
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("Expected issuer 'test-issuer', got '%s'", claims.Issuer)
	}
}

func TestValidateAccessToken_InvalidToken(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	_, err := service.ValidateAccessToken("invalid-token")
	if err == nil {
		t.Fatal("Expected error for invalid token")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	config := JWTConfig{
		Secret: "test-secret-key-must-be-32-chars!",
		Issuer: "test-issuer",
	}
	service, _ := NewJWTService(config)
	tokenPair, _ := service.GenerateTokenPair("admin", "admin")

	other, _ := NewJWTService(JWTConfig{
		Secret: "another-secret-key-of-32-chars!!!",
		Issuer: "test-issuer",
	})

	_, err := other.ValidateAccessToken(tokenPair.AccessToken)
	if err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got: %v", err)
	}
}

func TestValidateAccessToken_WrongTokenType(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	tokenPair, _ := service.GenerateTokenPair("admin", "admin")

	// Try to validate refresh token as access token
	_, err := service.ValidateAccessToken(tokenPair.RefreshToken)
	if err != ErrInvalidTokenType {
		t.Errorf("Expected ErrInvalidTokenType, got: %v", err)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	tokenPair, _ := service.GenerateTokenPair("admin", "admin")

	// Validate the refresh token
	claims, err := service.ValidateRefreshToken(tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("Expected username 'admin', got '%s'", claims.Username)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Errorf("Expected token type 'refresh', got '%s'", claims.TokenType)
	}
}

func TestValidateRefreshToken_WrongTokenType(t *testing.T) {
	config := JWTConfig{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	}

	service, _ := NewJWTService(config)

	tokenPair, _ := service.GenerateTokenPair("admin", "admin")

	// Try to validate access token as refresh token
	_, err := service.ValidateRefreshToken(tokenPair.AccessToken)
	if err != ErrInvalidTokenType {
		t.Errorf("Expected ErrInvalidTokenType, got: %v", err)
	}
}

func TestClaims_IsAdmin(t *testing.T) {
	tests := []struct {
		role     string
		expected bool
	}{
		{"admin", true},
		{"user", false},
		{"", false},
		{"Admin", false}, // Case-sensitive
	}

	for _, tc := range tests {
		claims := &Claims{Role: tc.role}
		if claims.IsAdmin() != tc.expected {
			t.Errorf("IsAdmin() for role '%s': expected %v, got %v", tc.role, tc.expected, claims.IsAdmin())
		}
	}
}
