// Package middleware holds echo middleware for the reminder API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// Authenticator resolves an API token to the owning user ID.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user ID on the context.
func RequireAuth(auth Authenticator, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": appErrors.ErrUnauthorized.Error()})
			}

			userID, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, appErrors.ErrUnauthorized) {
					log.Warn(fmt.Sprintf("Rejected unknown API token from %s", c.RealIP()))
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": appErrors.ErrUnauthorized.Error()})
				}
				log.Error("Failed to authenticate request", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": appErrors.ErrInternalServer.Error()})
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated caller, or "" outside RequireAuth.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
