package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentalapp/mentalapp-api/internal/http/middleware"
	"github.com/mentalapp/mentalapp-api/internal/service"
)

// AuthHandler exposes the auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register creates an inactive account from the submitted form.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		FirstName            string `json:"first_name"`
		LastName             string `json:"last_name"`
		Gender               string `json:"gender"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{"body": "Invalid payload."})
		return
	}

	created, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Gender:               req.Gender,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, "Account created. Check your email for the verification code.", created)
}

// Verify activates the account matching the code/email query pair.
func (h *AuthHandler) Verify(c *gin.Context) {
	code := c.Query("code")
	email := c.Query("email")
	if code == "" || email == "" {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{"query": "Both code and email are required."})
		return
	}

	user, err := h.Auth.Verify(c.Request.Context(), email, code)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Account verified successfully.", user)
}

// SignIn issues a token pair for valid credentials.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{"body": "Invalid payload."})
		return
	}

	tokens, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Signed in successfully.", tokens)
}

// Refresh rotates the refresh token and returns a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{"body": "Invalid payload."})
		return
	}

	tokens, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Token refreshed successfully.", tokens)
}

// Me resolves the current account from the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthenticated.", map[string]string{"auth": "Bearer token required."})
		return
	}

	model, err := h.Auth.Me(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Current account resolved.", model)
}

// SignOut revokes the bearer token. It deliberately sits outside
// RequireAuth so revoking an already-revoked token stays a success.
func (h *AuthHandler) SignOut(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthenticated.", map[string]string{"auth": "Bearer token required."})
		return
	}

	if err := h.Auth.SignOut(c.Request.Context(), raw); err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Signed out successfully.", gin.H{"signed_out": true})
}
