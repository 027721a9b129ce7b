package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/api/middleware"
)

// AuthHandler handles authentication-related API endpoints.
type AuthHandler struct {
	credentials auth.Credentials
	jwtService  *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(credentials auth.Credentials, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		jwtService:  jwtService,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a sanitized user representation for API responses.
type UserResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login.
// Authenticates the admin credentials and returns a JWT token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	// Validate credentials
	if err := h.credentials.Validate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			InternalServerError(w, "No API credentials configured")
			return
		}
		Unauthorized(w, "Invalid username or password")
		return
	}

	// Generate token pair
	tokenPair, err := h.jwtService.GenerateTokenPair(h.credentials.Username, "admin")
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	// Build response
	response := LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User: UserResponse{
			Username: h.credentials.Username,
			Role:     "admin",
		},
	}

	WriteJSONOK(w, response)
}

// Refresh handles POST /api/v1/auth/refresh.
// Returns a new token pair using a valid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	// Validate the refresh token
	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	// Refuse tokens minted for a credential that has since been rotated
	if claims.Username != h.credentials.Username {
		Unauthorized(w, "Invalid refresh token")
		return
	}

	// Generate new token pair
	tokenPair, err := h.jwtService.GenerateTokenPair(claims.Username, claims.Role)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	// Build response
	response := LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User: UserResponse{
			Username: claims.Username,
			Role:     claims.Role,
		},
	}

	WriteJSONOK(w, response)
}

// Me handles GET /api/v1/auth/me.
// Returns the current authenticated user's information.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	WriteJSONOK(w, UserResponse{
		Username: claims.Username,
		Role:     claims.Role,
	})
}
