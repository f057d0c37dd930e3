package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mentalapp/mentalapp-api/internal/config"
	"github.com/mentalapp/mentalapp-api/internal/domain"
	"github.com/mentalapp/mentalapp-api/internal/password"
	"github.com/mentalapp/mentalapp-api/internal/repository"
)

// EnsureSeedAccount creates an initial active guest account for dev/e2e
// when SEED_EMAIL is configured. Guest accounts skip verification by being
// born active.
func EnsureSeedAccount(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSeedAccount(ctx, cfg, users, node, logger)
		},
	})
}

func ensureSeedAccount(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.SeedEmail))
	if email == "" {
		return nil
	}
	if strings.TrimSpace(cfg.SeedPassword) == "" {
		return fmt.Errorf("SEED_PASSWORD is required when SEED_EMAIL is set")
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("seed lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.SeedPassword)
	if err != nil {
		return fmt.Errorf("seed hash password: %w", err)
	}

	code := make([]byte, 16)
	if _, err := rand.Read(code); err != nil {
		return fmt.Errorf("seed profile code: %w", err)
	}

	user := domain.User{
		ID:           node.Generate().Int64(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    "Guest",
		LastName:     "Account",
		Gender:       "other",
		IsActive:     true,
		IsGuest:      true,
		ProfileCode:  hex.EncodeToString(code),
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		return fmt.Errorf("seed create user: %w", err)
	}

	if logger != nil {
		logger.Info("seed account created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
