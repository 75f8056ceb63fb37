// Package auth verifies bearer tokens issued by the identity provider and
// carries the caller's identity through request contexts.
package auth

import (
	"crypto"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller's access level. Roles are ordered: viewer < analyst < admin.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

var roleRank = map[Role]int{RoleViewer: 1, RoleAnalyst: 2, RoleAdmin: 3}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return roleRank[r] > 0 }

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool { return r.Valid() && roleRank[r] >= roleRank[min] }

// Claims is the token payload. The subject is the user id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks signature, expiry, issuer and audience of access tokens.
type Verifier struct {
	key    crypto.PublicKey
	parser *jwt.Parser
}

// NewVerifier parses a PEM encoded RSA or ECDSA public key. issuer and
// audience are enforced when non-empty.
func NewVerifier(publicKeyPEM, issuer, audience string) (*Verifier, error) {
	pem := []byte(strings.TrimSpace(publicKeyPEM))
	if len(pem) == 0 {
		return nil, errors.New("jwt public key is empty")
	}
	var (
		key     crypto.PublicKey
		methods []string
	)
	if k, err := jwt.ParseRSAPublicKeyFromPEM(pem); err == nil {
		key, methods = k, []string{"RS256", "RS384", "RS512"}
	} else if k, err := jwt.ParseECPublicKeyFromPEM(pem); err == nil {
		key, methods = k, []string{"ES256", "ES384", "ES512"}
	} else {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Verifier{key: key, parser: jwt.NewParser(opts...)}, nil
}

// Verify returns the user id and role from a valid token.
func (v *Verifier) Verify(raw string) (userID string, role Role, err error) {
	var claims Claims
	tok, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return v.key, nil })
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return "", "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims.Subject, claims.Role, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
