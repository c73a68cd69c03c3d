// Package token signs and verifies the broker's first-party access and
// refresh tokens. The signing secret is process-wide immutable state loaded
// once at startup; rotating it invalidates all outstanding tokens.
package token

import (
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/lectory/lectory-auth/internal/domain"
)

// Type discriminates access from refresh tokens. The two are never
// interchangeable; Decode surfaces the type so callers can enforce it.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the decoded payload of a signed token.
type Claims struct {
	Subject     int64
	Type        Type
	Permissions []string
	ExpiresAt   time.Time
}

type customClaims struct {
	Type        string   `json:"type"`
	Permissions []string `json:"permissions,omitempty"`
}

// Codec encodes and decodes signed, expiring claims. It is pure: issuing
// is deterministic given the secret and clock, and Decode has no side
// effects.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec constructs a Codec signing with HS256 over the given secret.
func NewCodec(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	return &Codec{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccess signs a short-lived access token carrying the account's
// permissions.
func (c *Codec) IssueAccess(subject int64, permissions []string) (string, error) {
	return c.sign(subject, TypeAccess, permissions, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token. Refresh tokens carry no
// permissions; they are only exchangeable for a new pair.
func (c *Codec) IssueRefresh(subject int64) (string, error) {
	return c.sign(subject, TypeRefresh, nil, c.refreshTTL)
}

func (c *Codec) sign(subject int64, typ Type, permissions []string, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC()
	// Unique jti: without it two tokens minted for the same subject within
	// one second would be byte-identical, and rotation could not tell a
	// replay from the current token.
	std := gojwt.Claims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(subject, 10),
		Issuer:    c.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{Type: string(typ), Permissions: permissions}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return raw, nil
}

// Decode verifies the signature and expiry and returns the claims. Every
// failure mode (malformed token, signature mismatch, expired, unsupported
// algorithm, bad subject) is reported as domain.ErrInvalidToken; malformed
// input is an expected case, never a panic.
func (c *Codec) Decode(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if err := std.Validate(gojwt.Expected{Issuer: c.issuer, Time: c.now()}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	subject, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad subject", domain.ErrInvalidToken)
	}

	typ := Type(custom.Type)
	if typ != TypeAccess && typ != TypeRefresh {
		return Claims{}, fmt.Errorf("%w: unknown token type", domain.ErrInvalidToken)
	}

	claims := Claims{
		Subject: subject,
		Type:    typ,
	}
	if std.Expiry != nil {
		claims.ExpiresAt = std.Expiry.Time()
	}
	if typ == TypeAccess {
		claims.Permissions = custom.Permissions
	}
	return claims, nil
}

// AccessTTL reports the configured access token lifetime, used for
// expires_in fields at the HTTP edge.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}
