package patient

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/assistant"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
	"github.com/sourishdey2005/Med-Saarthi/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/reconciliation", h.GetReconciliation)
	api.GET("/patients/:id/alerts", h.GetAlerts)
	api.POST("/patients/:id/alerts/assess", h.AssessAlerts)
	api.GET("/patients/:id/adherence", h.GetAdherence)
	api.POST("/patients/:id/adherence/:eventId", h.RecordAdherence)
	api.POST("/patients/:id/history-summary", h.HistorySummary)
	api.GET("/patients/:id/discharge-summary", h.GetDischargeDefaults)
	api.POST("/patients/:id/discharge-summary", h.GenerateDischargeSummary)
	api.POST("/patients/:id/triage", h.Triage)
	api.GET("/patients/:id/risk-heatmap", h.GetRiskHeatmap)
	api.GET("/reconciliation-queue", h.GetReconciliationQueue)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrEventNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "adherence event not found")
	case errors.Is(err, adherence.ErrAlreadyRecorded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, adherence.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if assistant.ErrorStatus(err) != 0 {
		return assistant.HTTPError(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func bySeverity(c echo.Context) bool {
	return c.QueryParam("order") == "severity"
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{Status: Status(c.QueryParam("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}
	patients, total, err := h.svc.ListPatients(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetReconciliation(c echo.Context) error {
	rec, err := h.svc.Reconciliation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetAlerts(c echo.Context) error {
	alerts, err := h.svc.StaticAlerts(c.Request().Context(), c.Param("id"), bySeverity(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// AssessAlerts answers 502 with the static-only assessment in the body when
// the reasoning check fails, so the client can keep showing stored alerts.
func (h *Handler) AssessAlerts(c echo.Context) error {
	out, err := h.svc.AssessAlerts(c.Request().Context(), c.Param("id"))
	if err != nil && !errors.Is(err, safety.ErrAssessmentFailed) {
		return httpError(err)
	}
	if out != nil && bySeverity(c) {
		out.Alerts = safety.SortBySeverity(out.Alerts)
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetAdherence(c echo.Context) error {
	sum, err := h.svc.Adherence(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

type recordAdherenceRequest struct {
	Status     adherence.Status `json:"status"`
	ActualTime *time.Time       `json:"actual_time,omitempty"`
}

func (h *Handler) RecordAdherence(c echo.Context) error {
	var req recordAdherenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be Taken or Missed")
	}
	ev, err := h.svc.RecordAdherence(c.Request().Context(), c.Param("id"), c.Param("eventId"), req.Status, req.ActualTime)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) HistorySummary(c echo.Context) error {
	out, err := h.svc.HistorySummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDischargeDefaults(c echo.Context) error {
	lang := assistant.Language(c.QueryParam("language"))
	if lang != "" && !lang.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "language must be one of "+assistant.LanguageCodes())
	}
	out, err := h.svc.DischargeDefaults(c.Request().Context(), c.Param("id"), lang)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GenerateDischargeSummary(c echo.Context) error {
	var edits assistant.DischargeSummaryRequest
	if err := c.Bind(&edits); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.DischargeSummary(c.Request().Context(), c.Param("id"), edits)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Triage(c echo.Context) error {
	out, err := h.svc.Triage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetRiskHeatmap(c echo.Context) error {
	var seed int64
	if raw := c.QueryParam("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "seed must be an integer")
		}
		seed = v
	}
	rows, err := h.svc.RiskHeatmap(c.Request().Context(), c.Param("id"), seed)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"seed": seed, "rows": rows})
}

func (h *Handler) GetReconciliationQueue(c echo.Context) error {
	items, err := h.svc.ReconciliationQueue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": items, "total": len(items)})
}
