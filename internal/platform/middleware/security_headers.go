package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderPolicy selects the response headers added by SecurityHeaders.
type HeaderPolicy struct {
	// HSTS adds Strict-Transport-Security. Development servers listen on
	// plain HTTP and leave it off.
	HSTS bool
	// OperationalPrefixes are paths that never return patient data. Their
	// responses may be revalidated; every other response is no-store.
	OperationalPrefixes []string
}

// DefaultHeaderPolicy covers the health and metrics routes of the server.
func DefaultHeaderPolicy(production bool) HeaderPolicy {
	return HeaderPolicy{
		HSTS:                production,
		OperationalPrefixes: []string{"/health", "/metrics"},
	}
}

func (p HeaderPolicy) operational(path string) bool {
	for _, prefix := range p.OperationalPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// SecurityHeaders sets the headers for a JSON API serving patient records.
func SecurityHeaders(p HeaderPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("X-Robots-Tag", "noindex, nofollow")
			if p.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			if p.operational(c.Request().URL.Path) {
				h.Set("Cache-Control", "no-cache")
			} else {
				h.Set("Cache-Control", "no-store, private")
				h.Set("Pragma", "no-cache")
			}
			return next(c)
		}
	}
}
