package referral

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/domain/access"
	"github.com/healthoffice/records/internal/platform/apperr"
	"github.com/healthoffice/records/internal/platform/metrics"
	"github.com/healthoffice/records/pkg/pagination"
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
	read := api.Group("/referrals", access.RequireCapability(h.metrics, h.logger, access.CapView))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/:id/logs", h.Logs)

	// Capability and ownership checks for writes live in the service, since
	// cancel accepts either of two capabilities and checks ownership under
	// the row lock.
	write := api.Group("/referrals")
	write.POST("", h.Create)
	write.POST("/:id/cancel", h.Cancel)
	write.POST("/:id/complete", h.Complete)
	write.POST("/:id/void", h.Void)
	write.POST("/:id/reinstate", h.Reinstate)
}

func (h *Handler) fail(c echo.Context, err error) error {
	return apperr.Respond(c, h.logger, err)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("referral id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	f, err := parseFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	pg := pagination.FromContext(c)

	items, total, err := h.svc.List(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	if items == nil {
		items = []*Referral{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	f.Status = Status(c.QueryParam("status"))

	parseDate := func(name string) (*time.Time, error) {
		v := c.QueryParam(name)
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperr.Validation("%s must be a date in YYYY-MM-DD format", name)
		}
		return &t, nil
	}
	parseInt := func(name string) (*int64, error) {
		v := c.QueryParam(name)
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, apperr.Validation("%s must be a positive integer", name)
		}
		return &n, nil
	}

	var err error
	if f.DateFrom, err = parseDate("date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = parseDate("date_to"); err != nil {
		return f, err
	}
	// date_to is inclusive of the whole day.
	if f.DateTo != nil {
		end := f.DateTo.AddDate(0, 0, 1)
		f.DateTo = &end
	}
	if f.ReferredBy, err = parseInt("referred_by"); err != nil {
		return f, err
	}
	if f.BarangayID, err = parseInt("barangay_id"); err != nil {
		return f, err
	}
	if f.PatientID, err = parseInt("patient_id"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) Get(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	r, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusOK, "referral loaded", r)
}

func (h *Handler) Logs(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	logs, err := h.svc.Logs(c.Request().Context(), p, id)
	if err != nil {
		return h.fail(c, err)
	}
	if logs == nil {
		logs = []*Log{}
	}
	return apperr.OK(c, http.StatusOK, "referral history loaded", logs)
}

func (h *Handler) Create(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return h.fail(c, apperr.Validation("invalid request body"))
	}
	r, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusCreated, "Referral created successfully", r)
}

type cancelRequest struct {
	Reason   string `json:"reason" form:"reason"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) Cancel(c echo.Context) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, apperr.Validation("invalid request body"))
	}
	res, err := h.svc.Cancel(c.Request().Context(), p, id, req.Reason, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusOK, "Referral cancelled successfully", res)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.simple(c, func(p *access.Principal, id int64) (*TransitionResult, error) {
		return h.svc.Complete(c.Request().Context(), p, id)
	}, "Referral completed successfully")
}

type voidRequest struct {
	Reason string `json:"reason" form:"reason"`
}

func (h *Handler) Void(c echo.Context) error {
	var req voidRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, apperr.Validation("invalid request body"))
	}
	return h.simple(c, func(p *access.Principal, id int64) (*TransitionResult, error) {
		return h.svc.Void(c.Request().Context(), p, id, req.Reason)
	}, "Referral voided successfully")
}

func (h *Handler) Reinstate(c echo.Context) error {
	return h.simple(c, func(p *access.Principal, id int64) (*TransitionResult, error) {
		return h.svc.Reinstate(c.Request().Context(), p, id)
	}, "Referral reinstated successfully")
}

func (h *Handler) simple(c echo.Context, fn func(*access.Principal, int64) (*TransitionResult, error), message string) error {
	p, err := access.PrincipalOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := fn(p, id)
	if err != nil {
		return h.fail(c, err)
	}
	return apperr.OK(c, http.StatusOK, message, res)
}
