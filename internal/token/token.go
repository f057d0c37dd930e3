package token

import (
	"context"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/mentalapp/mentalapp-api/internal/domain"
)

// Issuer signs and validates access tokens.
type Issuer struct {
	keys      *KeyManager
	issuer    string
	accessTTL time.Duration
}

// NewIssuer constructs an access token issuer.
func NewIssuer(manager *KeyManager, issuer string, accessTTL time.Duration) *Issuer {
	return &Issuer{keys: manager, issuer: issuer, accessTTL: accessTTL}
}

// AccessClaims is the custom JWT payload for access tokens.
type AccessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Generate produces a signed JWT for the user with the given jti.
func (i *Issuer) Generate(ctx context.Context, user domain.User, jti string) (string, error) {
	key, err := i.keys.EnsureSigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("ensure signing key: %w", err)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		ID:        jti,
		Subject:   fmt.Sprintf("%d", user.ID),
		Issuer:    i.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(i.accessTTL)),
		NotBefore: gojwt.NewNumericDate(now),
	}
	custom := AccessClaims{
		Email: user.Email,
		Name:  user.FullName(),
	}

	signed, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer, and time bounds, returning the claims.
func (i *Issuer) Validate(ctx context.Context, raw string) (*gojwt.Claims, *AccessClaims, error) {
	key, err := i.keys.ActiveKey(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}

	allowed := []gojose.SignatureAlgorithm{gojose.SignatureAlgorithm(key.Algorithm)}
	parsed, err := gojwt.ParseSigned(raw, allowed)
	if err != nil {
		return nil, nil, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom AccessClaims
	if err := parsed.Claims(key.Secret, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("verify token: %w", err)
	}

	if err := std.Validate(gojwt.Expected{Issuer: i.issuer, Time: time.Now().UTC()}); err != nil {
		return nil, nil, fmt.Errorf("validate claims: %w", err)
	}

	return &std, &custom, nil
}

// AccessTTL exposes the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}
