package consultation

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/metrics"
)

type Handler struct {
	svc     *Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewHandler(svc *Service, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, metrics: m, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	visits := api.Group("/visits")

	visits.GET("/:id/consultation", h.GetConsultation, access.RequireCapability(h.metrics, h.logger, access.CapView))
	visits.PUT("/:id/consultation", h.SaveConsultation, access.RequireCapability(h.metrics, h.logger, access.CapEditConsultation))

	visits.GET("/:id/vitals", h.GetVitals, access.RequireCapability(h.metrics, h.logger, access.CapView))
	visits.PUT("/:id/vitals", h.SaveVitals, access.RequireCapability(h.metrics, h.logger, access.CapEditVitals))
}

func (h *Handler) fail(c echo.Context, err error) error {
	return apperr.Respond(c, h.logger, err)
}

func parseVisitID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("visit id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) GetConsultation(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	visitID, err := parseVisitID(c)
	if err != nil {
		return h.fail(c, err)
	}
	rec, err := h.svc.GetConsultation(c.Request().Context(), p, visitID)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusOK, "consultation loaded", rec)
}

func (h *Handler) SaveConsultation(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	visitID, err := parseVisitID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, apperr.Validation("invalid request body"))
	}
	rec, res, err := h.svc.SaveConsultation(c.Request().Context(), p, visitID, in)
	if err != nil {
		return h.fail(c, err)
	}
	if res.Created {
		return apperr.OK(c, http.StatusCreated, "Consultation saved successfully", rec)
	}
	return apperr.OK(c, http.StatusOK, "Consultation updated successfully", rec)
}

func (h *Handler) GetVitals(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	visitID, err := parseVisitID(c)
	if err != nil {
		return h.fail(c, err)
	}
	rec, err := h.svc.GetVitals(c.Request().Context(), p, visitID)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusOK, "vitals loaded", rec)
}

func (h *Handler) SaveVitals(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	visitID, err := parseVisitID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in VitalsInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, apperr.Validation("invalid request body"))
	}
	rec, res, err := h.svc.SaveVitals(c.Request().Context(), p, visitID, in)
	if err != nil {
		return h.fail(c, err)
	}
	if res.Created {
		return apperr.OK(c, http.StatusCreated, "Vitals saved successfully", rec)
	}
	return apperr.OK(c, http.StatusOK, "Vitals updated successfully", rec)
}
