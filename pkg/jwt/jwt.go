package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid key")
	ErrUnknownKey       = errors.New("token signed with an unknown key")
)

// DefaultAudience is the aud claim of access tokens when none is configured
const DefaultAudience = "atelier-api"

// Claims are the access token claims. Subject carries the user ID.
type Claims struct {
	gojwt.RegisteredClaims

	Email    string `json:"email,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"` // participant, organizer, admin
}

// IsAdmin returns true if the claims carry the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// IsStaff returns true for organizers and admins
func (c *Claims) IsStaff() bool {
	return c.Role == "organizer" || c.Role == "admin"
}

// Service signs and validates access tokens with one RSA key pair
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyID      string
	issuer     string
	audience   string
	expiration time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// Config holds JWT service configuration
type Config struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
	Audience       string // default DefaultAudience
	ExpirationMins int
	Leeway         time.Duration // clock skew tolerated on exp, nbf and iat
}

// NewService creates a new JWT service. A private key enables signing;
// a public key alone is enough for validation.
func NewService(cfg Config) (*Service, error) {
	s := &Service{
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiration: time.Duration(cfg.ExpirationMins) * time.Minute,
		leeway:     cfg.Leeway,
		now:        time.Now,
	}
	if s.audience == "" {
		s.audience = DefaultAudience
	}

	if cfg.PrivateKeyPath != "" {
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		key, err := gojwt.ParseRSAPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		s.privateKey = key
		s.publicKey = &key.PublicKey
	}

	if cfg.PublicKeyPath != "" && s.publicKey == nil {
		data, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key: %w", err)
		}
		key, err := gojwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		s.publicKey = key
	}

	if s.publicKey != nil {
		kid, err := KeyID(s.publicKey)
		if err != nil {
			return nil, err
		}
		s.keyID = kid
	}

	return s, nil
}

// KeyID is the base64url of the first 16 bytes of the SHA-256 of the DER
// encoded public key. Sign puts it in the kid header.
func KeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// NewTestService creates a JWT service with in-memory keys.
// Only for tests.
func NewTestService(privateKey *rsa.PrivateKey, issuer string, expiration time.Duration) *Service {
	kid, _ := KeyID(&privateKey.PublicKey)
	return &Service{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		keyID:      kid,
		issuer:     issuer,
		audience:   DefaultAudience,
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateKeyPair generates a 2048-bit RSA key pair and writes a PKCS#8
// private key and a PKIX public key as PEM files. Existing files are
// overwritten.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateDER,
	})
	if err := os.WriteFile(privateKeyPath, privateKeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})
	if err := os.WriteFile(publicKeyPath, publicKeyPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

// Sign stamps iss, aud, iat, nbf and jti onto the claims, plus exp unless
// already set, and returns the RS256 token with a kid header
func (s *Service) Sign(claims Claims) (string, error) {
	if s.privateKey == nil {
		return "", ErrInvalidKey
	}

	now := s.now().Truncate(time.Second)
	claims.Issuer = s.issuer
	claims.Audience = gojwt.ClaimStrings{s.audience}
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.NotBefore = gojwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(s.expiration))
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature, the time window, the issuer and the
// audience of a token and returns its claims. A kid header, when present,
// must name this service's key.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if s.publicKey == nil {
		return nil, ErrInvalidKey
	}

	var claims Claims
	_, err := gojwt.ParseWithClaims(tokenString, &claims, func(token *gojwt.Token) (any, error) {
		if kid, ok := token.Header["kid"].(string); ok && s.keyID != "" && kid != s.keyID {
			return nil, ErrUnknownKey
		}
		return s.publicKey, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodRS256.Alg()}),
		gojwt.WithIssuer(s.issuer),
		gojwt.WithAudience(s.audience),
		gojwt.WithIssuedAt(),
		gojwt.WithLeeway(s.leeway),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, mapError(err)
	}

	return &claims, nil
}

// GetExpiration returns the access token lifetime
func (s *Service) GetExpiration() time.Duration {
	return s.expiration
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, gojwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrInvalidToken
	}
}
