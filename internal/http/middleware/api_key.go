package middleware

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/topic-notifier/internal/repository"
	echo "github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserIDFromCtx extracts the authenticated user id set by APIKeyMiddleware.
func UserIDFromCtx(c echo.Context) (int64, bool) {
	id, ok := c.Get(userIDKey).(int64)
	return id, ok && id > 0
}

// SetUserID is what APIKeyMiddleware does on success.
func SetUserID(c echo.Context, id int64) { c.Set(userIDKey, id) }

// APIKeyMiddleware resolves the X-API-Key header to a user.
func APIKeyMiddleware(users repository.UsersRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			u, err := users.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				c.Logger().Errorf("api key lookup failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if u == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			SetUserID(c, u.ID)
			return next(c)
		}
	}
}
