package api

import (
	"github.com/labstack/echo/v4"

	icache "FinScore/internal/service/cache"
	xhttp "FinScore/pkg/http"
	applogger "FinScore/pkg/logger"
)

// CacheHandler exposes result cache administration.
type CacheHandler struct {
	logger *applogger.Logger
	cache  *icache.ResultCache
}

func NewCacheHandler(logger *applogger.Logger, cache *icache.ResultCache) *CacheHandler {
	return &CacheHandler{logger: logger, cache: cache}
}

func (h *CacheHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/cache")
	g.POST("/invalidate", h.InvalidateAll)
	g.POST("/invalidate-expired", h.InvalidateExpired)
	g.GET("/stats", h.Stats)
}

type invalidateResponse struct {
	Removed int `json:"removed"`
}

func (h *CacheHandler) InvalidateAll(c echo.Context) error {
	n := h.cache.InvalidateAll(c.Request().Context())
	h.logger.Info("cache invalidated via api", applogger.Int("removed", n), applogger.String("remote", c.RealIP()))
	return xhttp.SuccessResponse(c, invalidateResponse{Removed: n})
}

func (h *CacheHandler) InvalidateExpired(c echo.Context) error {
	return xhttp.SuccessResponse(c, invalidateResponse{Removed: h.cache.InvalidateExpired()})
}

func (h *CacheHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cache.Stats())
}
