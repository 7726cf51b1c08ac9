package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sourishdey2005/Med-Saarthi/internal/platform/llm"
)

// Handler serves the capabilities that are not tied to a stored patient.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/medications/explain", h.ExplainMedication)
	api.POST("/audio-guidance", h.AudioGuidance)
}

func (h *Handler) ExplainMedication(c echo.Context) error {
	var req ExplainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.ExplainMedication(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AudioGuidance(c echo.Context) error {
	var req AudioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.GenerateAudioGuidance(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ErrorStatus maps a reasoning error to an HTTP status. It returns 0 for
// errors it does not recognise.
func ErrorStatus(err error) int {
	var upstream *llm.Error
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidResponse), errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return 0
}

// HTTPError turns a reasoning error into the response sent to the client.
// Upstream failures carry a short message the user can dismiss; the
// details stay in the logs.
func HTTPError(err error) *echo.HTTPError {
	switch ErrorStatus(err) {
	case http.StatusUnprocessableEntity:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case http.StatusBadGateway:
		return echo.NewHTTPError(http.StatusBadGateway, "The reasoning service could not complete the request. Please try again.").SetInternal(err)
	case http.StatusGatewayTimeout:
		return echo.NewHTTPError(http.StatusGatewayTimeout, "The reasoning service timed out. Please try again.").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
