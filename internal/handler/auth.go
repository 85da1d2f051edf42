package handler

import (
	"net/http"
	"time"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RefreshRequest represents the refresh endpoint request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Username       *string        `json:"username,omitempty"`
	Firstname      *string        `json:"firstname,omitempty"`
	Lastname       *string        `json:"lastname,omitempty"`
	DisplayName    string         `json:"display_name"`
	Role           model.UserRole `json:"role"`
	ClientID       *string        `json:"client_id,omitempty"`
	GrantedLevelID *string        `json:"granted_level_id,omitempty"`
	CreatedOn      string         `json:"created_on"`
}

type authResponse struct {
	User  UserResponse     `json:"user"`
	Token *model.TokenPair `json:"token"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusCreated, authResponse{
		User:  toUserResponse(result.User),
		Token: result.TokenPair,
	}, map[string]string{"self": "/v1/auth/me"})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, authResponse{
		User:  toUserResponse(result.User),
		Token: result.TokenPair,
	}, map[string]string{"self": "/v1/auth/me"})
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "refresh_token", Message: "refresh_token is required"},
		}))
		return
	}

	tokenPair, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, tokenPair, nil)
}

// Logout handles POST /v1/auth/logout. All refresh tokens of the caller
// are revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteNoContent(w)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, toUserResponse(user), map[string]string{
		"self":           "/v1/auth/me",
		"participations": "/v1/me/participations",
		"certification":  "/v1/me/certification",
	})
}

// ChangePassword handles POST /v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteNoContent(w)
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Username:       user.Username,
		Firstname:      user.Firstname,
		Lastname:       user.Lastname,
		DisplayName:    user.DisplayName(),
		Role:           user.Role,
		ClientID:       user.ClientID,
		GrantedLevelID: user.GrantedLevelID,
		CreatedOn:      user.CreatedOn.UTC().Format(time.RFC3339),
	}
}
