package jwt

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the token shape the Edge Filter verifies: sub, email and
// username plus the standard registered claims (iss, aud, jti, iat, exp).
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID parses the registered Subject claim as the user id.
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Validator verifies RS256-signed access tokens against a configured
// public key. Tokens are signed by a separate auth service; this
// service only ever holds the public half.
type Validator struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
}

// NewValidator loads an RSA public key from a PEM file and builds a
// Validator that checks signature, expiry, issuer and audience.
func NewValidator(publicKeyPath, issuer, audience string) (*Validator, error) {
	keyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return &Validator{publicKey: key, issuer: issuer, audience: audience}, nil
}

// NewValidatorFromKey builds a Validator directly from a parsed key,
// used by tests that generate an ephemeral keypair rather than reading
// a PEM file from disk.
func NewValidatorFromKey(key *rsa.PublicKey, issuer, audience string) *Validator {
	return &Validator{publicKey: key, issuer: issuer, audience: audience}
}

// ValidateToken verifies the token's RS256 signature and expiry and returns its claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
