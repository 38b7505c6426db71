package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"FinScore/internal/domain/models"
	"FinScore/internal/usecase"
	xhttp "FinScore/pkg/http"
	applogger "FinScore/pkg/logger"
)

// AnalysisHandler serves single-symbol analysis and profiles.
type AnalysisHandler struct {
	logger   *applogger.Logger
	analyzer *usecase.Analyzer
	profiles *usecase.ProfileUseCase
	params   models.Params
	timeout  time.Duration
}

func NewAnalysisHandler(logger *applogger.Logger, analyzer *usecase.Analyzer, profiles *usecase.ProfileUseCase, params models.Params, timeout time.Duration) *AnalysisHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AnalysisHandler{logger: logger, analyzer: analyzer, profiles: profiles, params: params, timeout: timeout}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analyze", h.Analyze)
	g.GET("/profile", h.Profile)
}

func (h *AnalysisHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, err := usecase.WindowFrom(req.Timeframe, req.Bars, req.End)
	if err != nil {
		return xhttp.ErrorResponse(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res, cached, err := h.analyzer.Analyze(ctx, req.Symbol, w, h.params)
	if err != nil {
		h.logger.Warn("analyze failed",
			applogger.String("symbol", req.Symbol),
			applogger.String("reason", models.Reason(err)),
			applogger.Error(err),
		)
		return xhttp.ErrorResponse(c, err)
	}
	if cached {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Profile(c echo.Context) error {
	req := &models.ProfileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.profiles.GetProfile(c.Request().Context(), usecase.GetProfileParams{
		Symbol:   req.Symbol,
		Window:   models.Window{Timeframe: models.NormalizeTimeframe(req.Timeframe), Bars: req.Bars},
		FlowDays: req.FlowDays,
	})
	if err != nil {
		h.logger.Warn("profile failed", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return xhttp.ErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
