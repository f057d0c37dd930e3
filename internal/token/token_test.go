package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/mentalapp/mentalapp-api/internal/domain"
	"github.com/mentalapp/mentalapp-api/internal/token"
)

type memoryKeyRepo struct {
	key domain.SigningKey
}

func (m *memoryKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	if m.key.KID == "" {
		return domain.SigningKey{}, pgx.ErrNoRows
	}
	return m.key, nil
}

func (m *memoryKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	key.ID = 1
	m.key = key
	return key, nil
}

func TestGenerateAndValidate(t *testing.T) {
	ctx := context.Background()
	issuer := token.NewIssuer(token.NewKeyManager(&memoryKeyRepo{}), "mentalapp", time.Minute)
	user := domain.User{ID: 42, Email: "jack.meyer@example.com", FirstName: "Jack", LastName: "Meyer"}

	jti := uuid.NewString()
	raw, err := issuer.Generate(ctx, user, jti)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	std, custom, err := issuer.Validate(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, "42", std.Subject)
	require.Equal(t, jti, std.ID)
	require.Equal(t, user.Email, custom.Email)
	require.Equal(t, "Jack Meyer", custom.Name)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	issuer := token.NewIssuer(token.NewKeyManager(&memoryKeyRepo{}), "mentalapp", -time.Minute)
	user := domain.User{ID: 7, Email: "jill@example.com"}

	raw, err := issuer.Generate(ctx, user, uuid.NewString())
	require.NoError(t, err)

	_, _, err = issuer.Validate(ctx, raw)
	require.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	ctx := context.Background()
	keys := token.NewKeyManager(&memoryKeyRepo{})
	issuer := token.NewIssuer(keys, "mentalapp", time.Minute)
	other := token.NewIssuer(keys, "someone-else", time.Minute)

	raw, err := other.Generate(ctx, domain.User{ID: 1, Email: "a@x.com"}, uuid.NewString())
	require.NoError(t, err)

	_, _, err = issuer.Validate(ctx, raw)
	require.Error(t, err)
}

func TestValidateRejectsForeignKey(t *testing.T) {
	ctx := context.Background()
	issuer := token.NewIssuer(token.NewKeyManager(&memoryKeyRepo{}), "mentalapp", time.Minute)
	forged := token.NewIssuer(token.NewKeyManager(&memoryKeyRepo{}), "mentalapp", time.Minute)

	// Materialize a key for the validating issuer so the failure below is
	// a signature mismatch, not a missing key.
	_, err := issuer.Generate(ctx, domain.User{ID: 2, Email: "b@x.com"}, uuid.NewString())
	require.NoError(t, err)

	raw, err := forged.Generate(ctx, domain.User{ID: 1, Email: "a@x.com"}, uuid.NewString())
	require.NoError(t, err)

	_, _, err = issuer.Validate(ctx, raw)
	require.Error(t, err)
}
