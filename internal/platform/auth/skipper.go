package auth

import (
	"github.com/labstack/echo/v4"
)

// IsPublicPath reports whether route is an infrastructure endpoint served
// without credentials.
func IsPublicPath(route string) bool {
	switch route {
	case "/health", "/health/db", "/metrics":
		return true
	}
	return false
}

// AuthSkipper matches on the registered route template, not the raw URL.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}
