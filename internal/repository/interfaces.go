package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mentalapp/mentalapp-api/internal/domain"
)

// ErrDuplicateEmail is returned by UserRepository.Create when the email
// unique constraint rejects the insert. The constraint is the authoritative
// uniqueness check; any in-service pre-check only exists for friendlier
// error ordering.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository exposes persistence for accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Activate(ctx context.Context, userID int64) (domain.User, error)
}

// TokenRepository handles issued token pairs.
type TokenRepository interface {
	Create(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (domain.AuthToken, error)
	GetByAccessJTI(ctx context.Context, jti string) (domain.AuthToken, error)
	Rotate(ctx context.Context, tokenID int64, refreshToken, accessJTI string, expiresAt time.Time) error
	Revoke(ctx context.Context, tokenID int64) error
}

// KeyRepository stores JWT signing keys.
type KeyRepository interface {
	GetActiveKey(ctx context.Context) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}

// ReviewRepository persists reviews scoped by their subject user.
type ReviewRepository interface {
	Create(ctx context.Context, review domain.Review) (domain.Review, error)
	GetByID(ctx context.Context, userID, reviewID int64) (domain.Review, error)
	Update(ctx context.Context, review domain.Review) (domain.Review, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Review, error)
}

// RevokedTokenStore remembers signed-out access tokens until they expire.
type RevokedTokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
