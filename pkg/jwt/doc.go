// Package jwt signs and validates the RS256 access tokens issued by the
// Atelier API.
//
// Tokens are built on github.com/golang-jwt/jwt/v5. The service holds an
// RSA key pair loaded from PEM files; validation-only deployments can load
// just the public key. Every token carries a kid header derived from the
// public key and an aud claim (DefaultAudience unless configured).
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    PublicKeyPath:  "keys/public.pem",
//	    Issuer:         "atelier",
//	    ExpirationMins: 15,
//	    Leeway:         30 * time.Second,
//	})
//
//	token, err := svc.Sign(jwt.Claims{UserID: user.ID, Email: user.Email, Role: "participant"})
//	claims, err := svc.Validate(token)
//
// Validation errors are reported as ErrTokenExpired, ErrTokenNotYetValid,
// ErrInvalidSignature, ErrUnknownKey or ErrInvalidToken.
package jwt
