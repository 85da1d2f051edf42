package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	// Length limits count characters, not bytes
	minPasswordLength = 8
	maxPasswordLength = 128

	// bcrypt ignores input past this many bytes
	bcryptMaxInput = 72

	maxEmailLength = 254
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	TouchLogin(ctx context.Context, userID string) error
}

// AuthService registers accounts and exchanges credentials for tokens
type AuthService struct {
	userRepo     UserRepository
	tokenService *TokenService
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo     UserRepository
	TokenService *TokenService
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userRepo:     cfg.UserRepo,
		tokenService: cfg.TokenService,
	}
}

// RegisterRequest is the self-service sign-up payload
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	User      *model.User      `json:"user"`
	TokenPair *model.TokenPair `json:"tokens"`
}

// Register creates a participant account. Staff roles are only ever given
// by an admin. Without a username the local part of the email is used.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = email[:strings.IndexByte(email, '@')]
	}

	user := &model.User{
		Email:     email,
		Hash:      &hash,
		Username:  &username,
		Firstname: stringPtr(strings.TrimSpace(req.Firstname)),
		Lastname:  stringPtr(strings.TrimSpace(req.Lastname)),
		Role:      model.UserRoleParticipant,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// Login checks an email and password. Unknown emails still pay for one
// bcrypt comparison so response time does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Hash == nil || *user.Hash == "" {
		checkPassword(req.Password, dummyHash())
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(req.Password, *user.Hash) {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	// login_on is informational
	_ = s.userRepo.TouchLogin(ctx, user.ID)

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RefreshTokens rotates a refresh token. The user is reloaded so a role
// change or level grant since the last login lands in the new access token.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	stored, err := s.tokenService.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	return s.tokenService.RefreshTokens(ctx, refreshToken, user)
}

// Logout revokes the user's refresh tokens. Access tokens stay valid until
// they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *AuthService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.tokenService.ValidateAccessToken(token)
}

// ChangePassword verifies the current password, stores the new one and
// signs the user out everywhere
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Hash != nil && *user.Hash != "" && !checkPassword(oldPassword, *user.Hash) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == oldPassword {
		return ErrPasswordUnchanged
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// bcryptInput shrinks passwords longer than bcrypt accepts to a fixed size
// digest. Shorter ones are used as is, so the rule depends only on length.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

var dummyHash = sync.OnceValue(func() string {
	hash, _ := bcrypt.GenerateFromPassword([]byte("atelier-timing-equalizer"), bcryptCost)
	return string(hash)
})

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		return ErrPasswordRequired
	case n < minPasswordLength:
		return ErrPasswordTooShort
	case n > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// normalizeEmail lowercases a bare address and checks it has a dotted
// domain. Display names ("Ada <ada@example.com>") are rejected.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !isValidEmail(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	domain := email[strings.LastIndexByte(email, '@')+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
