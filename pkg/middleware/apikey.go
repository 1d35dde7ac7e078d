package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

const (
	HeaderAPIKey = "X-API-KEY"

	// protectedPrefix is the path prefix that requires a key; health and metrics stay open
	protectedPrefix = "/api"
)

// APIKey guards every /api route with a shared key. An empty configured key rejects
// all protected requests.
func APIKey(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path != protectedPrefix && !strings.HasPrefix(path, protectedPrefix+"/") {
				return next(c)
			}

			provided := c.Request().Header.Get(HeaderAPIKey)
			if provided == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "API Key was not provided.")
			}
			if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				return httperror.NewHTTPError(http.StatusForbidden, "Unauthorized client.")
			}

			return next(c)
		}
	}
}
