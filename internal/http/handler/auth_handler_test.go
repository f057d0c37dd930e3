package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentalapp/mentalapp-api/internal/config"
	"github.com/mentalapp/mentalapp-api/internal/domain"
	transport "github.com/mentalapp/mentalapp-api/internal/http"
	"github.com/mentalapp/mentalapp-api/internal/http/handler"
	"github.com/mentalapp/mentalapp-api/internal/http/middleware"
	"github.com/mentalapp/mentalapp-api/internal/notify"
	"github.com/mentalapp/mentalapp-api/internal/repository"
	"github.com/mentalapp/mentalapp-api/internal/service"
	"github.com/mentalapp/mentalapp-api/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	users  *fakeUsers
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	users := newFakeUsers()
	tokens := newFakeTokens()
	revoked := newFakeRevoked()
	reviews := newFakeReviews()

	cfg := config.Config{
		ServiceName:        "mentalapp-api",
		AppVersion:         "test",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		RefreshTokenBytes:  32,
		TokenIssuer:        "mentalapp",
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
	}

	issuer := token.NewIssuer(token.NewKeyManager(&fakeKeys{}), cfg.TokenIssuer, cfg.AccessTokenTTL)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	logger := zap.NewNop()
	authService := service.NewAuthService(users, tokens, revoked, issuer, notify.Noop{}, node, cfg, logger)
	reviewService := service.NewReviewService(reviews, users, node, logger)

	router := transport.NewRouter(cfg,
		handler.NewAuthHandler(authService),
		handler.NewReviewHandler(reviewService),
		&middleware.Auth{AuthService: authService},
	)
	return &testAPI{router: router, users: users}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	// UseNumber keeps snowflake ids exact; float64 cannot hold them.
	var payload map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
		dec.UseNumber()
		require.NoError(t, dec.Decode(&payload))
	}
	return rec.Code, payload
}

func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	n, ok := v.(json.Number)
	require.True(t, ok, "expected a JSON number, got %T", v)
	i, err := n.Int64()
	require.NoError(t, err)
	return i
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"email":                 email,
		"password":              "passw0rd",
		"password_confirmation": "passw0rd",
		"first_name":            "Jack",
		"last_name":             "Meyer",
		"gender":                "male",
	}
}

// registerAndVerify walks an account through register and verify and
// returns its email.
func (a *testAPI) registerAndVerify(t *testing.T, email string) string {
	t.Helper()

	status, _ := a.do(t, http.MethodPost, "/api/v1/auth/register", registerBody(email), "")
	require.Equal(t, http.StatusCreated, status)

	code := a.users.profileCode(t, email)
	status, _ = a.do(t, http.MethodGet, "/api/v1/auth/verify?email="+email+"&code="+code, nil, "")
	require.Equal(t, http.StatusOK, status)
	return email
}

func (a *testAPI) signIn(t *testing.T, email string) (string, string) {
	t.Helper()

	status, payload := a.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]any{"email": email, "password": "passw0rd"}, "")
	require.Equal(t, http.StatusOK, status)

	data := payload["data"].(map[string]any)
	return data["access_token"].(string), data["refresh_token"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("jack.meyer@example.com"), "")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, true, payload["status"])
	require.NotEmpty(t, payload["message"])
	require.Contains(t, payload, "data")
	require.NotContains(t, payload, "errors")

	data := payload["data"].(map[string]any)
	require.Equal(t, "jack.meyer@example.com", data["email"])
	require.NotZero(t, data["id"])

	// Same email again.
	status, payload = api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("jack.meyer@example.com"), "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, payload["status"])
	require.Contains(t, payload, "errors")
	require.NotContains(t, payload, "data")

	fields := payload["errors"].(map[string]any)
	require.Contains(t, fields, "email")
}

func TestRegisterEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	body := registerBody("bad@example.com")
	body["gender"] = "males"
	body["password_confirmation"] = "different1"

	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, payload["status"])

	fields := payload["errors"].(map[string]any)
	require.Contains(t, fields, "gender")
	require.Contains(t, fields, "password")
}

func TestVerifyEndpoint(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(t, http.MethodGet, "/api/v1/auth/verify", nil, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, payload := api.do(t, http.MethodGet, "/api/v1/auth/verify?email=nobody@example.com&code=abc", nil, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, payload["status"])

	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("jack.meyer@example.com"), "")
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/auth/verify?email=jack.meyer@example.com&code=wrong", nil, "")
	require.Equal(t, http.StatusBadRequest, status)

	code := api.users.profileCode(t, "jack.meyer@example.com")
	status, payload = api.do(t, http.MethodGet, "/api/v1/auth/verify?email=jack.meyer@example.com&code="+code, nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, payload["status"])

	data := payload["data"].(map[string]any)
	require.Equal(t, true, data["is_active"])

	// Verifying twice is rejected.
	status, _ = api.do(t, http.MethodGet, "/api/v1/auth/verify?email=jack.meyer@example.com&code="+code, nil, "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSignInEndpoint(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("jack.meyer@example.com"), "")
	require.Equal(t, http.StatusCreated, status)

	// Not verified yet.
	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]any{"email": "jack.meyer@example.com", "password": "passw0rd"}, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, false, payload["status"])

	code := api.users.profileCode(t, "jack.meyer@example.com")
	status, _ = api.do(t, http.MethodGet, "/api/v1/auth/verify?email=jack.meyer@example.com&code="+code, nil, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]any{"email": "jack.meyer@example.com", "password": "wrong-password"}, "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, payload = api.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]any{"email": "jack.meyer@example.com", "password": "passw0rd"}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, payload["status"])

	data := payload["data"].(map[string]any)
	require.NotEmpty(t, data["access_token"])
	require.NotEmpty(t, data["refresh_token"])
	require.Equal(t, "Bearer", data["token_type"])

	user := data["user"].(map[string]any)
	require.Equal(t, "jack.meyer@example.com", user["email"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "profile_code")
}

func TestMeEndpoint(t *testing.T) {
	api := newTestAPI(t)
	email := api.registerAndVerify(t, "jack.meyer@example.com")
	access, _ := api.signIn(t, email)

	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/me", nil, access)
	require.Equal(t, http.StatusOK, status)

	data := payload["data"].(map[string]any)
	require.Equal(t, email, data["email"])

	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/me", nil, "garbage-token")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshEndpoint(t *testing.T) {
	api := newTestAPI(t)
	email := api.registerAndVerify(t, "jack.meyer@example.com")
	_, refresh := api.signIn(t, email)

	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, status)

	data := payload["data"].(map[string]any)
	require.NotEmpty(t, data["access_token"])
	rotated := data["refresh_token"].(string)
	require.NotEqual(t, refresh, rotated)

	// The old refresh token no longer works.
	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestSignOutEndpoint(t *testing.T) {
	api := newTestAPI(t)
	email := api.registerAndVerify(t, "jack.meyer@example.com")
	access, refresh := api.signIn(t, email)

	status, payload := api.do(t, http.MethodPost, "/api/v1/auth/signout", nil, access)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, payload["status"])

	// The revoked token no longer authenticates.
	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/me", nil, access)
	require.Equal(t, http.StatusUnauthorized, status)

	// Its refresh token died with it.
	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusUnauthorized, status)

	// Signing out again still succeeds.
	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/signout", nil, access)
	require.Equal(t, http.StatusOK, status)

	// No token at all is rejected.
	status, _ = api.do(t, http.MethodPost, "/api/v1/auth/signout", nil, "")
	require.Equal(t, http.StatusUnauthorized, status)
}

// --- fakes shared by the handler tests ---

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[int64]domain.User)}
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (f *fakeUsers) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.User{}, repository.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Activate(ctx context.Context, userID int64) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	u.IsActive = true
	f.users[userID] = u
	return u, nil
}

func (f *fakeUsers) profileCode(t *testing.T, email string) string {
	t.Helper()
	u, err := f.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.ProfileCode
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[int64]domain.AuthToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[int64]domain.AuthToken)}
}

func (f *fakeTokens) Create(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.CreatedAt = time.Now().UTC()
	f.tokens[token.ID] = token
	return token, nil
}

func (f *fakeTokens) GetByRefreshToken(ctx context.Context, refreshToken string) (domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.tokens {
		if tok.RefreshToken == refreshToken {
			return tok, nil
		}
	}
	return domain.AuthToken{}, pgx.ErrNoRows
}

func (f *fakeTokens) GetByAccessJTI(ctx context.Context, jti string) (domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.tokens {
		if tok.AccessJTI == jti {
			return tok, nil
		}
	}
	return domain.AuthToken{}, pgx.ErrNoRows
}

func (f *fakeTokens) Rotate(ctx context.Context, tokenID int64, refreshToken, accessJTI string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[tokenID]
	if !ok {
		return pgx.ErrNoRows
	}
	tok.RefreshToken = refreshToken
	tok.AccessJTI = accessJTI
	tok.ExpiresAt = expiresAt
	f.tokens[tokenID] = tok
	return nil
}

func (f *fakeTokens) Revoke(ctx context.Context, tokenID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[tokenID]
	if !ok {
		return nil
	}
	tok.Revoked = true
	f.tokens[tokenID] = tok
	return nil
}

type fakeKeys struct {
	mu  sync.Mutex
	key domain.SigningKey
}

func (f *fakeKeys) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.key.KID == "" {
		return domain.SigningKey{}, pgx.ErrNoRows
	}
	return f.key, nil
}

func (f *fakeKeys) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key.ID = 1
	f.key = key
	return key, nil
}

type fakeRevoked struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func newFakeRevoked() *fakeRevoked {
	return &fakeRevoked{revoked: make(map[string]struct{})}
}

func (f *fakeRevoked) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = struct{}{}
	return nil
}

func (f *fakeRevoked) IsRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews map[int64]domain.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{reviews: make(map[int64]domain.Review)}
}

func (f *fakeReviews) Create(ctx context.Context, review domain.Review) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	f.reviews[review.ID] = review
	return review, nil
}

func (f *fakeReviews) GetByID(ctx context.Context, userID, reviewID int64) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	review, ok := f.reviews[reviewID]
	if !ok || review.UserID != userID {
		return domain.Review{}, pgx.ErrNoRows
	}
	return review, nil
}

func (f *fakeReviews) Update(ctx context.Context, review domain.Review) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.reviews[review.ID]
	if !ok {
		return domain.Review{}, pgx.ErrNoRows
	}
	stored.Rating = review.Rating
	stored.Comment = review.Comment
	stored.UpdatedAt = time.Now().UTC()
	f.reviews[review.ID] = stored
	return stored, nil
}

func (f *fakeReviews) ListByUser(ctx context.Context, userID int64) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Review
	for _, review := range f.reviews {
		if review.UserID == userID {
			out = append(out, review)
		}
	}
	return out, nil
}
