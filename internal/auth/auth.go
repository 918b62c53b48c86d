// Package auth verifies bearer credentials for Manabi.
//
// Tokens are Ed25519 (EdDSA) JWTs issued by the identity provider. The
// gateway only needs the public key for verification; a private key can be
// configured in development to mint tokens locally.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends jwt.RegisteredClaims. Subject is the stable subject
// identifier used to key the profile store.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and, when a private key is configured,
// issues development tokens.
type Verifier struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey // nil in production (verify-only)
	issuer     string
	audience   string
}

// NewVerifier creates a Verifier from PEM key files. publicKeyPath is
// required for production; if both paths are empty an ephemeral key pair is
// generated (development only — tokens do not survive a restart).
// privateKeyPath is optional and enables IssueToken.
func NewVerifier(privateKeyPath, publicKeyPath, issuer, audience string) (*Verifier, error) {
	if publicKeyPath == "" {
		slog.Warn("auth: no JWT key files configured, generating ephemeral key pair (not for production)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("auth: generate key pair: %w", err)
		}
		return &Verifier{publicKey: pub, privateKey: priv, issuer: issuer, audience: audience}, nil
	}

	pubPEM, err := os.ReadFile(publicKeyPath) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("auth: read public key: %w", err)
	}
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("auth: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: public key is not Ed25519")
	}

	v := &Verifier{publicKey: edPub, issuer: issuer, audience: audience}

	if privateKeyPath != "" {
		privPEM, err := os.ReadFile(privateKeyPath) //nolint:gosec // validated config path
		if err != nil {
			return nil, fmt.Errorf("auth: read private key: %w", err)
		}
		privBlock, _ := pem.Decode(privPEM)
		if privBlock == nil {
			return nil, fmt.Errorf("auth: decode private key PEM")
		}
		privKey, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parse private key: %w", err)
		}
		edPriv, ok := privKey.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("auth: private key is not Ed25519")
		}
		// Catch a key pair from two different environments early.
		if !bytes.Equal(edPriv.Public().(ed25519.PublicKey), edPub) {
			return nil, fmt.Errorf("auth: public key does not match private key")
		}
		v.privateKey = edPriv
	}

	return v, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
// The scheme match is case-insensitive and surrounding whitespace is
// tolerated. Returns "" when the header is absent or not a bearer credential.
func ExtractBearer(header string) string {
	header = strings.TrimSpace(header)
	i := strings.IndexFunc(header, unicode.IsSpace)
	if i < 0 || !strings.EqualFold(header[:i], "Bearer") {
		return ""
	}
	return strings.TrimSpace(header[i:])
}

// VerifyToken parses and validates a JWT, returning the claims.
// Failures are terminal, never retried: an invalid credential does not
// become valid on a second attempt.
func (v *Verifier) VerifyToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.publicKey, nil
		},
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return claims, nil
}

// IssueToken mints a token for subject, valid for ttl. Development helper;
// returns an error when no private key is configured.
func (v *Verifier) IssueToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if v.privateKey == nil {
		return "", time.Time{}, fmt.Errorf("auth: no private key configured, cannot issue tokens")
	}

	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(v.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}
