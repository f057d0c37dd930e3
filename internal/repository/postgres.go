package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentalapp/mentalapp-api/internal/domain"
)

const uniqueViolation = "23505"

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, gender, is_active, is_guest, profile_code, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, password_hash, first_name, last_name, gender, is_active, is_guest, profile_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Gender,
		user.IsActive,
		user.IsGuest,
		user.ProfileCode,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) Activate(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users SET is_active = true, updated_at = now() WHERE id = $1 RETURNING `+userColumns, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("activate user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Gender,
		&u.IsActive,
		&u.IsGuest,
		&u.ProfileCode,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool}
}

const tokenColumns = `id, user_id, access_jti, refresh_token, expires_at, revoked, created_at`

func (r *PostgresTokenRepo) Create(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO auth_tokens (id, user_id, access_jti, refresh_token, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+tokenColumns,
		token.ID,
		token.UserID,
		token.AccessJTI,
		token.RefreshToken,
		token.ExpiresAt,
	)
	created, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("insert token: %w", err)
	}
	return created, nil
}

func (r *PostgresTokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (domain.AuthToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE refresh_token = $1`, refreshToken)
	token, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("get token by refresh: %w", err)
	}
	return token, nil
}

func (r *PostgresTokenRepo) GetByAccessJTI(ctx context.Context, jti string) (domain.AuthToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE access_jti = $1`, jti)
	token, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("get token by jti: %w", err)
	}
	return token, nil
}

func (r *PostgresTokenRepo) Rotate(ctx context.Context, tokenID int64, refreshToken, accessJTI string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE auth_tokens SET refresh_token = $2, access_jti = $3, expires_at = $4 WHERE id = $1`,
		tokenID, refreshToken, accessJTI, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate token: %w", err)
	}
	return nil
}

func (r *PostgresTokenRepo) Revoke(ctx context.Context, tokenID int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE auth_tokens SET revoked = true WHERE id = $1`, tokenID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func scanToken(row rowScanner) (domain.AuthToken, error) {
	var t domain.AuthToken
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.AccessJTI,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.Revoked,
		&t.CreatedAt,
	)
	return t, err
}

// PostgresKeyRepo implements KeyRepository.
type PostgresKeyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepo(pool *pgxpool.Pool) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: pool}
}

const keyColumns = `id, kid, secret, algorithm, is_active, created_at`

func (r *PostgresKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM signing_keys WHERE is_active ORDER BY created_at DESC LIMIT 1`)
	key, err := scanKey(row)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("get active key: %w", err)
	}
	return key, nil
}

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO signing_keys (kid, secret, algorithm, is_active)
VALUES ($1, $2, $3, $4)
RETURNING `+keyColumns,
		key.KID,
		key.Secret,
		key.Algorithm,
		key.IsActive,
	)
	created, err := scanKey(row)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("insert key: %w", err)
	}
	return created, nil
}

func scanKey(row rowScanner) (domain.SigningKey, error) {
	var k domain.SigningKey
	err := row.Scan(
		&k.ID,
		&k.KID,
		&k.Secret,
		&k.Algorithm,
		&k.IsActive,
		&k.CreatedAt,
	)
	return k, err
}

// PostgresReviewRepo implements ReviewRepository.
type PostgresReviewRepo struct {
	db *pgxpool.Pool
}

func NewPostgresReviewRepo(pool *pgxpool.Pool) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: pool}
}

const reviewColumns = `id, user_id, author_id, rating, comment, created_at, updated_at`

func (r *PostgresReviewRepo) Create(ctx context.Context, review domain.Review) (domain.Review, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO reviews (id, user_id, author_id, rating, comment)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+reviewColumns,
		review.ID,
		review.UserID,
		review.AuthorID,
		review.Rating,
		review.Comment,
	)
	created, err := scanReview(row)
	if err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return created, nil
}

func (r *PostgresReviewRepo) GetByID(ctx context.Context, userID, reviewID int64) (domain.Review, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 AND user_id = $2`, reviewID, userID)
	review, err := scanReview(row)
	if err != nil {
		return domain.Review{}, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *PostgresReviewRepo) Update(ctx context.Context, review domain.Review) (domain.Review, error) {
	row := r.db.QueryRow(ctx, `UPDATE reviews SET rating = $2, comment = $3, updated_at = now() WHERE id = $1 RETURNING `+reviewColumns,
		review.ID,
		review.Rating,
		review.Comment,
	)
	updated, err := scanReview(row)
	if err != nil {
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	return updated, nil
}

func (r *PostgresReviewRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func scanReview(row rowScanner) (domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID,
		&rv.UserID,
		&rv.AuthorID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	return rv, err
}
