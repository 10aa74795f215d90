package labs

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/labengine/internal/labengine"
	"github.com/ehr/labengine/internal/platform/auth"
	"github.com/ehr/labengine/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleLabTech))
	read.GET("/labs/guidelines", h.ListGuidelines)
	read.GET("/labs/guidelines/:key", h.GetGuideline)
	read.GET("/labs/resolve", h.Resolve)
	read.POST("/labs/interpret", h.Interpret)
	read.POST("/labs/panel", h.Panel)
	read.POST("/labs/analyze", h.Analyze)
	read.GET("/patients/:id/lab-analysis", h.PatientAnalysis)
}

func (h *Handler) ListGuidelines(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total := h.svc.Guidelines(pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetGuideline(c echo.Context) error {
	g, ok := h.svc.Guideline(c.Param("key"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "guideline not found")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Resolve(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return c.JSON(http.StatusOK, h.svc.Resolve(name))
}

func (h *Handler) Interpret(c echo.Context) error {
	var req InterpretRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res := h.svc.Interpret(req.TestName, string(req.Value))
	if !res.Success {
		return c.JSON(http.StatusNotFound, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Panel(c echo.Context) error {
	var rec labengine.RawLabRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	results, err := h.svc.Panel(rec)
	if errors.Is(err, labengine.ErrMalformedPayload) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Analyze(req.Records))
}

func (h *Handler) PatientAnalysis(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	analysis, err := h.svc.AnalyzePatient(c.Request().Context(), patientID)
	if errors.Is(err, ErrNoDatabase) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient lab history unavailable: no database configured")
	}
	if err != nil {
		h.svc.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("lab analysis failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load lab orders")
	}
	return c.JSON(http.StatusOK, analysis)
}
