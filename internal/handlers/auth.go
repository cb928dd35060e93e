package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"slidehub/pkg/auth"
)

// LocalAuthHandler exposes the token endpoints of the local identity
// provider
type LocalAuthHandler struct {
	jwtAuth *auth.LocalJWTAuth
}

// NewLocalAuthHandler creates a new local auth handler
func NewLocalAuthHandler(jwtAuth *auth.LocalJWTAuth) *LocalAuthHandler {
	return &LocalAuthHandler{jwtAuth: jwtAuth}
}

// RefreshTokenRequest is the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken generates a new access token from a refresh token. The
// claims carry the user's identity, so no user lookup is needed.
// POST /api/auth/refresh
func (h *LocalAuthHandler) RefreshToken(c *fiber.Ctx) error {
	if h.jwtAuth == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Authentication service unavailable",
		})
	}

	// Try to get refresh token from cookie first
	refreshToken := c.Cookies("refresh_token")

	// Fallback to request body
	if refreshToken == "" {
		var req RefreshTokenRequest
		if err := c.BodyParser(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Refresh token is required",
		})
	}

	claims, err := h.jwtAuth.VerifyRefreshToken(refreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired refresh token",
		})
	}

	// New access token only; the refresh token remains valid until expiry
	newAccessToken, _, err := h.jwtAuth.GenerateTokens(claims.UserID, claims.Email, claims.Name)
	if err != nil {
		log.Printf("❌ Failed to generate new access token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh token",
		})
	}

	return c.JSON(fiber.Map{
		"access_token": newAccessToken,
		"expires_in":   int(h.jwtAuth.AccessTokenExpiry.Seconds()),
	})
}
