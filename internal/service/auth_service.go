package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mentalapp/mentalapp-api/internal/config"
	"github.com/mentalapp/mentalapp-api/internal/domain"
	"github.com/mentalapp/mentalapp-api/internal/notify"
	pw "github.com/mentalapp/mentalapp-api/internal/password"
	"github.com/mentalapp/mentalapp-api/internal/repository"
	"github.com/mentalapp/mentalapp-api/internal/token"
)

const profileCodeBytes = 16

var allowedGenders = map[string]struct{}{
	"male":   {},
	"female": {},
	"other":  {},
}

// AuthService orchestrates the register, verify, signin, refresh, me, and
// signout lifecycle.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	revoked   repository.RevokedTokenStore
	issuer    *token.Issuer
	notifier  notify.Notifier
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, revoked repository.RevokedTokenStore, issuer *token.Issuer, notifier notify.Notifier, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		revoked:   revoked,
		issuer:    issuer,
		notifier:  notifier,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/mentalapp/mentalapp-api/internal/service"),
	}
}

// Register creates an inactive account and dispatches the verification
// event. The users.email unique constraint is the authoritative duplicate
// check; the lookup before insert only produces the friendlier error path.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisteredUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if fields := validateRegistration(input); len(fields) > 0 {
		return RegisteredUser{}, newValidationError(fields)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return RegisteredUser{}, newConflictError("email", "The email has already been taken.")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return RegisteredUser{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return RegisteredUser{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Email:        input.Email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Gender:       strings.ToLower(strings.TrimSpace(input.Gender)),
		IsActive:     false,
		IsGuest:      false,
		ProfileCode:  randomHex(profileCodeBytes),
	}

	created, err := s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return RegisteredUser{}, newConflictError("email", "The email has already been taken.")
	}
	if err != nil {
		span.RecordError(err)
		return RegisteredUser{}, fmt.Errorf("create user: %w", err)
	}

	s.dispatchVerification(created)
	s.audit("auth.register.success", "user_id", created.ID)

	return RegisteredUser{ID: created.ID, Email: created.Email, CreatedAt: created.CreatedAt}, nil
}

// Verify activates an account from its (email, code) pair. Lookup order
// matters: an unknown email yields 404 before the code is ever compared,
// so callers can tell a wrong email from a wrong code.
func (s *AuthService) Verify(ctx context.Context, email, code string) (UserViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Verify")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserViewModel{}, newNotFoundError("email", "No account matches this email address.")
	}
	if err != nil {
		span.RecordError(err)
		return UserViewModel{}, fmt.Errorf("verify lookup user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(user.ProfileCode)) != 1 {
		return UserViewModel{}, newValidationError(map[string]string{"code": "The verification code is invalid."})
	}

	if user.IsActive {
		return UserViewModel{}, newValidationError(map[string]string{"account": "The account is already verified."})
	}

	activated, err := s.users.Activate(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return UserViewModel{}, fmt.Errorf("activate user: %w", err)
	}

	s.audit("auth.verify.success", "user_id", activated.ID)
	return newUserViewModel(activated), nil
}

// SignIn authenticates email/password on an active account and issues a
// token pair. Every failure mode collapses into the same auth error so a
// caller cannot probe which part was wrong.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (AuthTokens, error) {
	ctx, span := s.startSpan(ctx, "AuthService.SignIn")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return AuthTokens{}, newAuthError("Wrong email or password.")
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return AuthTokens{}, newAuthError("Wrong email or password.")
	}

	if !user.IsActive {
		return AuthTokens{}, newAuthError("The account has not been verified.")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		span.RecordError(err)
		return AuthTokens{}, err
	}

	s.audit("auth.signin.success", "user_id", user.ID)
	return tokens, nil
}

// Refresh rotates the refresh token and mints a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthTokens, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return AuthTokens{}, newAuthError("Refresh token missing.")
	}

	stored, err := s.tokens.GetByRefreshToken(ctx, refreshToken)
	if err != nil || stored.Revoked || time.Now().After(stored.ExpiresAt) {
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			span.RecordError(err)
		}
		return AuthTokens{}, newAuthError("Invalid refresh token.")
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		span.RecordError(err)
		return AuthTokens{}, fmt.Errorf("refresh load user: %w", err)
	}

	jti := uuid.NewString()
	access, err := s.issuer.Generate(ctx, user, jti)
	if err != nil {
		span.RecordError(err)
		return AuthTokens{}, fmt.Errorf("refresh generate access token: %w", err)
	}

	next := randomHex(s.cfg.RefreshTokenBytes)
	expires := time.Now().Add(s.cfg.RefreshTokenTTL)
	if err := s.tokens.Rotate(ctx, stored.ID, next, jti, expires); err != nil {
		span.RecordError(err)
		return AuthTokens{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.audit("auth.refresh.success", "user_id", user.ID)
	return AuthTokens{
		AccessToken:  access,
		RefreshToken: next,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		User:         newUserViewModel(user),
	}, nil
}

// Authenticate resolves a bearer token to its account. Used by the auth
// middleware; rejects tokens that were signed out.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (domain.User, *gojwt.Claims, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	std, _, err := s.issuer.Validate(ctx, raw)
	if err != nil {
		return domain.User{}, nil, newAuthError("Invalid access token.")
	}

	revoked, err := s.revoked.IsRevoked(ctx, std.ID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, nil, newAuthError("Invalid access token.")
	}
	if revoked {
		return domain.User{}, nil, newAuthError("The token has been revoked.")
	}

	userID, err := parseSubject(std.Subject)
	if err != nil {
		return domain.User{}, nil, newAuthError("Invalid access token.")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, nil, newAuthError("Invalid access token.")
	}

	return user, std, nil
}

// Me returns the account behind a user id resolved from a valid token.
func (s *AuthService) Me(ctx context.Context, userID int64) (UserViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return UserViewModel{}, newAuthError("Invalid access token.")
	}
	return newUserViewModel(user), nil
}

// SignOut revokes the access token: its jti lands on the denylist until the
// token would have expired, and the backing token row is revoked so the
// refresh token dies with it. Signing out an already-revoked token succeeds.
func (s *AuthService) SignOut(ctx context.Context, raw string) error {
	ctx, span := s.startSpan(ctx, "AuthService.SignOut")
	defer span.End()

	std, _, err := s.issuer.Validate(ctx, raw)
	if err != nil {
		return newAuthError("Invalid access token.")
	}

	var ttl time.Duration
	if std.Expiry != nil {
		ttl = time.Until(std.Expiry.Time())
	}
	if err := s.revoked.Revoke(ctx, std.ID, ttl); err != nil {
		span.RecordError(err)
		return fmt.Errorf("denylist token: %w", err)
	}

	stored, err := s.tokens.GetByAccessJTI(ctx, std.ID)
	if err == nil {
		if err := s.tokens.Revoke(ctx, stored.ID); err != nil {
			span.RecordError(err)
			return fmt.Errorf("revoke token: %w", err)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return fmt.Errorf("signout lookup token: %w", err)
	}

	s.audit("auth.signout.success", "jti", std.ID)
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User) (AuthTokens, error) {
	jti := uuid.NewString()
	access, err := s.issuer.Generate(ctx, user, jti)
	if err != nil {
		return AuthTokens{}, fmt.Errorf("generate access token: %w", err)
	}

	refresh := randomHex(s.cfg.RefreshTokenBytes)
	record := domain.AuthToken{
		ID:           s.snowflake.Generate().Int64(),
		UserID:       user.ID,
		AccessJTI:    jti,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(s.cfg.RefreshTokenTTL),
	}
	if _, err := s.tokens.Create(ctx, record); err != nil {
		return AuthTokens{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		User:         newUserViewModel(user),
	}, nil
}

// dispatchVerification hands the event to the notifier without awaiting it.
func (s *AuthService) dispatchVerification(user domain.User) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.VerificationRequested(ctx, user); err != nil {
			s.log().Warn("verification event dispatch failed",
				zap.Int64("user_id", user.ID),
				zap.Error(err),
			)
		}
	}()
}

func validateRegistration(input RegisterInput) map[string]string {
	fields := make(map[string]string)

	if input.Email == "" {
		fields["email"] = "The email field is required."
	} else if !validEmail(input.Email) {
		fields["email"] = "The email must be a valid email address."
	}

	switch {
	case input.Password == "":
		fields["password"] = "The password field is required."
	case len(input.Password) < 8:
		fields["password"] = "The password must be at least 8 characters."
	case input.Password != input.PasswordConfirmation:
		fields["password"] = "The password confirmation does not match."
	}

	if strings.TrimSpace(input.FirstName) == "" {
		fields["first_name"] = "The first name field is required."
	}
	if strings.TrimSpace(input.LastName) == "" {
		fields["last_name"] = "The last name field is required."
	}

	gender := strings.ToLower(strings.TrimSpace(input.Gender))
	if gender == "" {
		fields["gender"] = "The gender field is required."
	} else if _, ok := allowedGenders[gender]; !ok {
		fields["gender"] = "The selected gender is invalid."
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func parseSubject(subject string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(subject, "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func randomHex(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
