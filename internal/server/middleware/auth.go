package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware requires a valid bearer token: either the master API key
// or a JWT verified against the configured JWKS.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		app := AppFrom(c)
		if app == nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server misconfigured"})
		}

		// Master API key bypass for service-to-service callers.
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			return next(c)
		}

		if app.Keyfunc == nil || *app.Keyfunc == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		parsed, err := jwt.Parse(token, (*app.Keyfunc).Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		return next(c)
	}
}
