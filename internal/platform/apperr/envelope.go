package apperr

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the response body for actions and record saves.
type Envelope struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	CurrentStatus string      `json:"current_status,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Respond writes a failure envelope for err. Persistence and authorization
// details are logged, never returned.
func Respond(c echo.Context, logger zerolog.Logger, err error) error {
	kind := KindOf(err)
	if kind == KindPersistence || kind == KindAuthorization {
		rid, _ := c.Get("request_id").(string)
		evt := logger.Warn()
		if kind == KindPersistence {
			evt = logger.Error()
		}
		evt.Err(err).
			Str("request_id", rid).
			Str("kind", string(kind)).
			Str("path", c.Request().URL.Path).
			Msg("request failed")
	}
	return c.JSON(HTTPStatus(err), Envelope{
		Success:       false,
		Message:       PublicMessage(err),
		CurrentStatus: CurrentStatus(err),
	})
}
