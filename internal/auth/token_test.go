package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return priv, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, method jwt.SigningMethod, key any, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return s
}

func claims(sub string, role Role, exp time.Duration) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://id.example.org",
			Audience:  jwt.ClaimStrings{"civicwatch"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
}

func TestVerify_ValidRSAToken(t *testing.T) {
	priv, pub := rsaKeyPair(t)
	v, err := NewVerifier(pub, "https://id.example.org", "civicwatch")
	require.NoError(t, err)

	userID, role, err := v.Verify(sign(t, jwt.SigningMethodRS256, priv, claims("user-1", RoleAnalyst, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, RoleAnalyst, role)
}

func TestVerify_ValidECToken(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	v, err := NewVerifier(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), "", "")
	require.NoError(t, err)

	userID, role, err := v.Verify(sign(t, jwt.SigningMethodES256, priv, claims("user-2", RoleAdmin, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
	assert.Equal(t, RoleAdmin, role)
}

func TestVerify_Rejects(t *testing.T) {
	priv, pub := rsaKeyPair(t)
	other, _ := rsaKeyPair(t)
	v, err := NewVerifier(pub, "https://id.example.org", "civicwatch")
	require.NoError(t, err)

	wrongIssuer := claims("user-1", RoleViewer, time.Hour)
	wrongIssuer.Issuer = "https://evil.example.org"
	wrongAudience := claims("user-1", RoleViewer, time.Hour)
	wrongAudience.Audience = jwt.ClaimStrings{"other-service"}
	noExpiry := claims("user-1", RoleViewer, time.Hour)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"expired", sign(t, jwt.SigningMethodRS256, priv, claims("user-1", RoleViewer, -time.Minute))},
		{"wrong key", sign(t, jwt.SigningMethodRS256, other, claims("user-1", RoleViewer, time.Hour))},
		{"hmac downgrade", sign(t, jwt.SigningMethodHS256, []byte(pub), claims("user-1", RoleViewer, time.Hour))},
		{"wrong issuer", sign(t, jwt.SigningMethodRS256, priv, wrongIssuer)},
		{"wrong audience", sign(t, jwt.SigningMethodRS256, priv, wrongAudience)},
		{"no expiry", sign(t, jwt.SigningMethodRS256, priv, noExpiry)},
		{"no subject", sign(t, jwt.SigningMethodRS256, priv, claims("", RoleViewer, time.Hour))},
		{"unknown role", sign(t, jwt.SigningMethodRS256, priv, claims("user-1", "superuser", time.Hour))},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewVerifier_BadKey(t *testing.T) {
	_, err := NewVerifier("", "", "")
	assert.Error(t, err)
	_, err = NewVerifier("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----", "", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer  "} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleAnalyst))
	assert.True(t, RoleAnalyst.AtLeast(RoleAnalyst))
	assert.False(t, RoleViewer.AtLeast(RoleAnalyst))
	assert.False(t, Role("owner").AtLeast(RoleViewer))
}

func TestIdentityContext(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), "user-1", RoleViewer)
	userID, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
	role, ok := GetRole(ctx)
	assert.True(t, ok)
	assert.Equal(t, RoleViewer, role)
}
