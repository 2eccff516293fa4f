package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/platform/auth"
)

// RoleKey is the echo context key under which the access middleware stores
// the caller's resolved role.
const RoleKey = "employee_role"

// Audit emits a record_access event for every /api/v1 request once the
// handler has run, so the status reflects the outcome.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			rid, _ := c.Get("request_id").(string)
			role, _ := c.Get(RoleKey).(string)

			evt := logger.Info()
			if status == http.StatusForbidden || status == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			if id, ok := auth.EmployeeIDFromContext(req.Context()); ok {
				evt = evt.Int64("employee_id", id)
			}
			evt.
				Str("type", "record_access").
				Str("request_id", rid).
				Str("role", role).
				Str("resource", resourceOf(req.URL.Path)).
				Str("action", actionOf(req.Method, req.URL.Path)).
				Str("path", req.URL.Path).
				Int("status", status).
				Time("at", time.Now().UTC()).
				Msg("record_access")

			return err
		}
	}
}

// resourceOf returns the first path segment after /api/v1/.
func resourceOf(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/api/v1/"), "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// actionOf names the operation, preferring an explicit action suffix such as
// /referrals/12/cancel.
func actionOf(method, path string) string {
	if method == http.MethodPost {
		switch {
		case strings.HasSuffix(path, "/cancel"):
			return "cancel"
		case strings.HasSuffix(path, "/complete"):
			return "complete"
		case strings.HasSuffix(path, "/void"):
			return "void"
		case strings.HasSuffix(path, "/reinstate"):
			return "reinstate"
		}
		return "create"
	}
	switch method {
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
