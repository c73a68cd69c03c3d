package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/http/middleware"
	"github.com/lectory/lectory-auth/internal/service"
)

// AuthHandler exposes the login broker endpoints.
type AuthHandler struct {
	Login     *service.LoginService
	AccessTTL time.Duration
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(login *service.LoginService, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{Login: login, AccessTTL: accessTTL}
}

// OAuthStart handles POST /auth/oauth/start.
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	var req struct {
		Provider      string `json:"provider" binding:"required"`
		CorrelationID string `json:"correlation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "provider and correlation_id are required."})
		return
	}

	redirectURL, err := h.Login.OAuthStart(c.Request.Context(), req.Provider, req.CorrelationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": redirectURL})
}

// OAuthCallback handles GET /auth/:provider/callback. The browser tab that
// followed the provider redirect lands here, so the response is a small
// HTML acknowledgement rather than JSON.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	err := h.Login.OAuthCallback(
		c.Request.Context(),
		provider,
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte("<html><body><p>Login complete. You can return to your device.</p></body></html>"))
	case errors.Is(err, domain.ErrProviderDenied):
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			[]byte("<html><body><p>Login was denied at the provider.</p></body></html>"))
	default:
		h.respondError(c, err)
	}
}

// CodeStart handles POST /auth/code/start.
func (h *AuthHandler) CodeStart(c *gin.Context) {
	var req struct {
		CorrelationID string `json:"correlation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "correlation_id is required."})
		return
	}

	code, err := h.Login.CodeStart(c.Request.Context(), req.CorrelationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// CodeConfirm handles POST /auth/code/confirm.
func (h *AuthHandler) CodeConfirm(c *gin.Context) {
	var req struct {
		Code         string `json:"code" binding:"required"`
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "code and refresh_token are required."})
		return
	}

	if err := h.Login.CodeConfirm(c.Request.Context(), req.Code, req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /auth/status.
func (h *AuthHandler) Status(c *gin.Context) {
	attempt, err := h.Login.Status(c.Request.Context(), c.Query("correlation_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"status": string(attempt.Status)}
	if attempt.Status == domain.LoginSuccess {
		resp["access_token"] = attempt.AccessToken
		resp["refresh_token"] = attempt.RefreshToken
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "refresh_token is required."})
		return
	}

	pair, err := h.Login.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.AccessTTL.Seconds()),
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "refresh_token is required."})
		return
	}

	if err := h.Login.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me behind the bearer middleware.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetAccessClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "No access claims."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":     strconv.FormatInt(claims.Subject, 10),
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt.UTC(),
	})
}

// Healthz handles GET /healthz.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_provider", "error_description": "Unknown provider."})
	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code", "error_description": "Unknown, expired, or already used code."})
	case errors.Is(err, domain.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Malformed, expired, or wrong-type token."})
	case errors.Is(err, domain.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_revoked", "error_description": "Refresh token no longer valid. Re-authenticate."})
	case errors.Is(err, domain.ErrUnknownCorrelation):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_correlation", "error_description": "Unknown correlation id."})
	case errors.Is(err, domain.ErrProviderError):
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_error", "error_description": "Provider exchange failed. Restart the login flow."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
	}
}
