package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/pkg/jwt"
)

// refreshTokenPrefix marks Atelier refresh tokens so leaked ones are easy
// to spot in logs and secret scanners
const refreshTokenPrefix = "atl_rt_"

// TokenRepository defines the interface for refresh token storage
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	ConsumeRefreshToken(ctx context.Context, hash string) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID string) error
	DeleteExpiredTokens(ctx context.Context) (int, error)
}

// TokenService issues access tokens and rotates single-use refresh tokens
type TokenService struct {
	jwtService      *jwt.Service
	tokenRepo       TokenRepository
	refreshDuration time.Duration
}

// TokenServiceConfig holds configuration for the token service
type TokenServiceConfig struct {
	JWTService      *jwt.Service
	TokenRepo       TokenRepository
	RefreshDuration time.Duration // Default: 30 days
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	if cfg.RefreshDuration == 0 {
		cfg.RefreshDuration = 30 * 24 * time.Hour
	}

	return &TokenService{
		jwtService:      cfg.JWTService,
		tokenRepo:       cfg.TokenRepo,
		refreshDuration: cfg.RefreshDuration,
	}
}

// GenerateTokenPair issues an access token carrying the user's role and a
// fresh opaque refresh token
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	claims := jwt.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: stringValue(user.Username),
		Role:     string(user.Role),
	}
	claims.Subject = user.ID

	accessToken, err := s.jwtService.Sign(claims)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stored := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.refreshDuration),
		CreatedAt: now,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, stored); err != nil {
		return nil, err
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtService.GetExpiration().Seconds()),
	}, nil
}

// LookupRefreshToken returns the stored record for a presented token.
// Strings that could not have been issued here are rejected without a
// database round trip.
func (s *TokenService) LookupRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	if !strings.HasPrefix(refreshToken, refreshTokenPrefix) {
		return nil, ErrInvalidRefreshToken
	}
	stored, err := s.tokenRepo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil || stored == nil {
		return nil, ErrInvalidRefreshToken
	}
	return stored, nil
}

// RefreshTokens exchanges a refresh token for a new pair. Each token works
// once: presenting one that was already used signs the owner out
// everywhere, since either the owner or a thief holds a copy.
func (s *TokenService) RefreshTokens(ctx context.Context, refreshToken string, user *model.User) (*model.TokenPair, error) {
	stored, err := s.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	consumed, err := s.tokenRepo.ConsumeRefreshToken(ctx, stored.TokenHash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		_ = s.tokenRepo.RevokeAllUserTokens(ctx, stored.UserID)
		return nil, ErrRefreshTokenRevoked
	}

	return s.GenerateTokenPair(ctx, user)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.Validate(token)
}

// RevokeAllUserTokens revokes all refresh tokens for a user
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID)
}

// PurgeExpired deletes expired and long-revoked refresh tokens
func (s *TokenService) PurgeExpired(ctx context.Context) (int, error) {
	return s.tokenRepo.DeleteExpiredTokens(ctx)
}

func (s *TokenService) generateRefreshToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return refreshTokenPrefix + base64.RawURLEncoding.EncodeToString(secret), nil
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
