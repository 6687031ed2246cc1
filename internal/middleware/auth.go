package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/auth"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
	"event-ticketing/internal/utils"
)

const sessionKey = "session"

// Auth resolves the bearer token into a models.Session stored on the context.
// Requests without a token pass through anonymously; an invalid token is
// rejected with 401.
func Auth(tokens *auth.TokenManager, loginURL string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		raw, err := auth.ExtractTokenFromHeader(header)
		if err == nil {
			var claims *auth.Claims
			claims, err = tokens.ValidateToken(raw)
			if err == nil {
				c.Set(sessionKey, claims.Session())
				c.Next()
				return
			}
		}

		log.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s from %s: %v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), err))
		Unauthorized(c, loginURL, err)
	}
}

// RequireSession aborts anonymous requests with 401 and a login_url.
func RequireSession(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Session(c).IsZero() {
			Unauthorized(c, loginURL, auth.ErrMissingToken)
			return
		}
		c.Next()
	}
}

// Session returns the caller's session, or the zero Session when anonymous.
func Session(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}

func Unauthorized(c *gin.Context, loginURL string, err error) {
	details := "authentication required"
	if err != nil && !errors.Is(err, auth.ErrMissingToken) {
		details = "invalid or expired token"
	}
	body := utils.ErrorResponse("Unauthorized", details)
	body["login_url"] = loginURL
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
