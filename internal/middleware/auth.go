package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/pkg/jwt"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

const (
	ClaimsKey    contextKey = "claims"
	UserEmailKey contextKey = "userEmail"
	UserRoleKey  contextKey = "userRole"
)

var errMissingBearer = errors.New("missing bearer token")

// bearerToken returns the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// Auth rejects requests without a valid access token
func Auth(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if errors.Is(err, errMissingBearer) {
				model.NewUnauthorizedError("missing authorization header").WriteJSON(w)
				return
			}
			if err != nil {
				model.NewUnauthorizedError(err.Error()).WriteJSON(w)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				model.NewTokenExpiredError().WriteJSON(w)
				return
			case errors.Is(err, jwt.ErrInvalidSignature):
				model.NewUnauthorizedError("invalid token signature").WriteJSON(w)
				return
			case err != nil:
				model.NewUnauthorizedError("invalid token").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the caller when a valid token is present and
// otherwise lets the request through anonymously
func OptionalAuth(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetUserRole extracts the role claim from context
func GetUserRole(ctx context.Context) model.UserRole {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return model.UserRole(role)
	}
	return ""
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
