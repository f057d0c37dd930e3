package domain

import "time"

// AuthToken persists one issued token pair. The access token itself is a
// signed JWT and is not stored; its jti is, so sign-out can revoke it.
// ExpiresAt bounds the refresh token, not the access token.
type AuthToken struct {
	ID           int64
	UserID       int64
	AccessJTI    string
	RefreshToken string
	ExpiresAt    time.Time
	Revoked      bool
	CreatedAt    time.Time
}

// SigningKey stores the JWT signing secret.
type SigningKey struct {
	ID        int64
	KID       string
	Secret    []byte
	Algorithm string
	IsActive  bool
	CreatedAt time.Time
}
