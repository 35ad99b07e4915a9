// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is an optional interface for minting session tokens after a
// verified login. The HTTP relay calls it once verification succeeds and
// returns the token to the browser.
type TokenIssuer interface {
	// IssueToken creates a JWT or other session token for the verified
	// user handle.
	IssueToken(ctx context.Context, userHandle []byte) (string, error)
}

// JWTIssuer issues JWT session tokens for verified users.
type JWTIssuer struct {
	// method is the JWT signing method derived from the key material
	method jwt.SigningMethod
	// signKey is the key material passed to the signing method
	signKey any
	// verifyKey is the key material used to verify tokens
	verifyKey any
	// issuer is the JWT issuer claim
	issuer string
	// audience is the JWT audience claim
	audience []string
	// expiresIn is how long tokens are valid
	expiresIn time.Duration
}

// JWTIssuerConfig contains configuration for the JWT issuer.
type JWTIssuerConfig struct {
	// Secret is an HMAC-SHA256 signing secret. Exactly one of Secret and
	// PrivateKey must be set.
	Secret []byte
	// PrivateKey is an asymmetric signing key (ECDSA, Ed25519, or RSA).
	PrivateKey crypto.PrivateKey
	// Issuer is the JWT issuer claim (default: "go-passkey")
	Issuer string
	// Audience is the JWT audience claim (default: ["go-passkey"])
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 1 hour)
	ExpiresIn time.Duration
}

// NewJWTIssuer creates a new JWT issuer with the given configuration.
func NewJWTIssuer(config *JWTIssuerConfig) (*JWTIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) == 0 && config.PrivateKey == nil {
		return nil, fmt.Errorf("a secret or private key is required")
	}
	if len(config.Secret) > 0 && config.PrivateKey != nil {
		return nil, fmt.Errorf("secret and private key are mutually exclusive")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	method, signKey, verifyKey, err := signingMaterial(config)
	if err != nil {
		return nil, err
	}

	return &JWTIssuer{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    issuer,
		audience:  audience,
		expiresIn: expiresIn,
	}, nil
}

// signingMaterial derives the JWT signing method and key pair from the
// configured key material.
func signingMaterial(config *JWTIssuerConfig) (jwt.SigningMethod, any, any, error) {
	if len(config.Secret) > 0 {
		return jwt.SigningMethodHS256, config.Secret, config.Secret, nil
	}

	switch key := config.PrivateKey.(type) {
	case *ecdsa.PrivateKey:
		switch key.Curve {
		case elliptic.P256():
			return jwt.SigningMethodES256, key, &key.PublicKey, nil
		case elliptic.P384():
			return jwt.SigningMethodES384, key, &key.PublicKey, nil
		case elliptic.P521():
			return jwt.SigningMethodES512, key, &key.PublicKey, nil
		default:
			return nil, nil, nil, fmt.Errorf("unsupported ECDSA curve: %s", key.Curve.Params().Name)
		}
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, key, key.Public(), nil
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, key, &key.PublicKey, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported private key type: %T", config.PrivateKey)
	}
}

// IssueToken creates a JWT for the verified user handle. The subject claim
// carries the handle in base64url form.
func (g *JWTIssuer) IssueToken(ctx context.Context, userHandle []byte) (string, error) {
	if len(userHandle) == 0 {
		return "", fmt.Errorf("user handle is required")
	}

	now := time.Now()

	claims := jwt.MapClaims{
		"iss": g.issuer,
		"aud": g.audience,
		"sub": base64.RawURLEncoding.EncodeToString(userHandle),
		"iat": now.Unix(),
		"exp": now.Add(g.expiresIn).Unix(),
		"nbf": now.Unix(),
	}

	return jwt.NewWithClaims(g.method, claims).SignedString(g.signKey)
}

// VerifyToken verifies a JWT and returns the claims.
func (g *JWTIssuer) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			return g.verifyKey, nil
		},
		jwt.WithValidMethods([]string{g.method.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	return claims, nil
}

// TokenSubject decodes the user handle carried in a verified token's
// subject claim.
func TokenSubject(claims jwt.MapClaims) ([]byte, error) {
	subject, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("failed to read subject claim: %w", err)
	}

	handle, err := base64.RawURLEncoding.DecodeString(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subject claim: %w", err)
	}

	return handle, nil
}

// Issuer returns the configured issuer.
func (g *JWTIssuer) Issuer() string {
	return g.issuer
}

// Audience returns the configured audience.
func (g *JWTIssuer) Audience() []string {
	return g.audience
}

// ExpiresIn returns the token expiration duration.
func (g *JWTIssuer) ExpiresIn() time.Duration {
	return g.expiresIn
}
