package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier("", "", "manabi", "manabi")
	require.NoError(t, err)
	return v
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"mixed case scheme", "BeArEr abc123", "abc123"},
		{"leading whitespace", "  Bearer abc123", "abc123"},
		{"trailing whitespace", "Bearer abc123  ", "abc123"},
		{"whitespace around token", "Bearer   abc123 ", "abc123"},
		{"tab separator", "Bearer\tabc123", "abc123"},
		{"mixed tabs and spaces", " \tBearer \t abc123", "abc123"},
		{"empty header", "", ""},
		{"whitespace only", "   ", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
		{"no scheme", "abc123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearer(tt.header))
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	v := newTestVerifier(t)

	token, exp, err := v.IssueToken("user-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "manabi", claims.Issuer)
}

func TestVerifyTokenExpired(t *testing.T) {
	v := newTestVerifier(t)

	token, _, err := v.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	v := newTestVerifier(t)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := v.VerifyToken(tok)
		assert.Error(t, err, "token %q", tok)
	}
}

func TestVerifyTokenWrongKey(t *testing.T) {
	issuer := newTestVerifier(t)
	verifier := newTestVerifier(t) // different ephemeral key pair

	token, _, err := issuer.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenWrongAudience(t *testing.T) {
	v := newTestVerifier(t)

	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "manabi",
			Audience:  jwt.ClaimStrings{"someone-else"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(v.privateKey)
	require.NoError(t, err)

	_, err = v.VerifyToken(signed)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsHMAC(t *testing.T) {
	v := newTestVerifier(t)

	// A token signed with HS256 must be rejected even if it parses.
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "manabi",
		Audience:  jwt.ClaimStrings{"manabi"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.VerifyToken(signed)
	assert.Error(t, err)
}

func TestVerifyTokenMissingSubject(t *testing.T) {
	v := newTestVerifier(t)

	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "manabi",
			Audience:  jwt.ClaimStrings{"manabi"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(v.privateKey)
	require.NoError(t, err)

	_, err = v.VerifyToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subject")
}
