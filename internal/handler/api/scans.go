package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinScore/internal/domain/models"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/usecase"
	xhttp "FinScore/pkg/http"
	applogger "FinScore/pkg/logger"
)

const (
	streamWriteWait   = 10 * time.Second
	streamPingEvery   = 30 * time.Second
	streamMinInterval = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ScanHandler starts, lists, cancels and streams market scans.
type ScanHandler struct {
	logger   *applogger.Logger
	registry *usecase.ScanRegistry
	limiter  *ratelimit.Limiter
	params   models.Params
}

func NewScanHandler(logger *applogger.Logger, registry *usecase.ScanRegistry, limiter *ratelimit.Limiter, params models.Params) *ScanHandler {
	return &ScanHandler{logger: logger, registry: registry, limiter: limiter, params: params}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/scans")
	g.POST("", h.Start)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel)
	g.GET("/:id/stream", h.Stream)
}

func (h *ScanHandler) Start(c echo.Context) error {
	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(c.RealIP()); !ok {
			return xhttp.ErrorResponse(c, &models.RateLimitError{RetryAfter: wait, Message: "scan submissions throttled"})
		}
	}

	body := &models.ScanRequestBody{}
	if verr := xhttp.ReadAndValidateRequest(c, body); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req, err := usecase.ScanRequestFromBody(*body, h.params)
	if err != nil {
		return xhttp.ErrorResponse(c, err)
	}

	job, err := h.registry.Start(c.Request().Context(), req)
	if err != nil {
		h.logger.Warn("scan rejected", applogger.Int("symbols", len(body.Symbols)), applogger.Error(err))
		return xhttp.ErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/scans/"+job.ID())
	return xhttp.CreatedResponse(c, job.Progress())
}

func (h *ScanHandler) List(c echo.Context) error {
	rows := h.registry.List()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ScanHandler) Get(c echo.Context) error {
	job, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, job.Progress())
}

func (h *ScanHandler) Cancel(c echo.Context) error {
	req := &models.ScanIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.registry.Cancel(req.ID)
	if err != nil {
		return h.registryError(c, req.ID, err)
	}
	return xhttp.AcceptedResponse(c, job.Progress())
}

// Stream pushes progress snapshots over a websocket until the scan finishes
// or the client goes away. The final frame carries the full result.
func (h *ScanHandler) Stream(c echo.Context) error {
	job, ok, err := h.lookup(c)
	if !ok {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.String("scan_id", job.ID()), applogger.Error(err))
		return nil
	}
	defer conn.Close()

	log := h.logger.With(applogger.String("scan_id", job.ID()), applogger.String("remote", c.RealIP()))
	log.Debug("scan stream opened")

	// reader: only detects close; clients send nothing we act on
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		p, changed := job.Watch()
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(p); err != nil {
			log.Debug("scan stream write failed", applogger.Error(err))
			return nil
		}
		if p.Done {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
			log.Debug("scan stream completed")
			return nil
		}

		// coalesce bursts of progress into one frame per interval
		select {
		case <-closed:
			return nil
		case <-time.After(streamMinInterval):
		}

		for waiting := true; waiting; {
			select {
			case <-closed:
				return nil
			case <-changed:
				waiting = false
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return nil
				}
			}
		}
	}
}

// lookup resolves the :id param. When ok is false the response has already
// been written and err is what the handler should return.
func (h *ScanHandler) lookup(c echo.Context) (job *usecase.ScanJob, ok bool, err error) {
	req := &models.ScanIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, false, xhttp.BadRequestResponse(c, verr)
	}
	job, err = h.registry.Get(req.ID)
	if err != nil {
		return nil, false, h.registryError(c, req.ID, err)
	}
	return job, true, nil
}

func (h *ScanHandler) registryError(c echo.Context, id string, err error) error {
	if errors.Is(err, usecase.ErrScanNotFound) {
		return xhttp.ErrorResponse(c, xhttp.NotFoundErrorf("scan %s not found", id))
	}
	return xhttp.ErrorResponse(c, err)
}
