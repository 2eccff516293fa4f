package access

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/platform/apperr"
)

type Handler struct {
	logger zerolog.Logger
}

func NewHandler(logger zerolog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me/scope", h.GetScope)
}

type scopeResponse struct {
	EmployeeID   int64      `json:"employee_id"`
	Role         string     `json:"role"`
	Capabilities []string   `json:"capabilities"`
	Visibility   Visibility `json:"visibility"`
}

func (h *Handler) GetScope(c echo.Context) error {
	p, err := PrincipalOf(c)
	if err != nil {
		return apperr.Respond(c, h.logger, err)
	}
	return apperr.OK(c, http.StatusOK, "scope resolved", scopeResponse{
		EmployeeID:   p.EmployeeID,
		Role:         string(p.Role),
		Capabilities: p.Scope.Capabilities.List(),
		Visibility:   p.Scope.Visibility,
	})
}
