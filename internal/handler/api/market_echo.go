package api

import (
	"encoding/json"
	"time"

	models "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	icache "github.com/lingxiaolyu191231/crypto-watcher/internal/service/cache"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/usecase"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
	xlogger "github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketEchoHandler exposes stored alerts, the watchlist and raw candles.
type MarketEchoHandler struct {
	logger    *xlogger.Logger
	alerts    *usecase.AlertsUseCase
	watchlist *usecase.WatchlistUseCase
	candles   *usecase.CandlesUseCase
	cache     icache.BytesCache
	cacheTTL  time.Duration
}

func NewMarketEchoHandler(
	logger *xlogger.Logger,
	alerts *usecase.AlertsUseCase,
	watchlist *usecase.WatchlistUseCase,
	candles *usecase.CandlesUseCase,
) *MarketEchoHandler {
	return &MarketEchoHandler{
		logger:    logger,
		alerts:    alerts,
		watchlist: watchlist,
		candles:   candles,
		cacheTTL:  30 * time.Second,
	}
}

// SetCache installs a response cache.
func (h *MarketEchoHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alerts", h.Alerts)
	g.GET("/watchlist", h.Watchlist)
	g.GET("/candles", h.Candles)
}

func (h *MarketEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	key := "alerts:" + req.Symbol + ":" + string(tf)
	if !req.OnlyTriggered && req.MinConfidence == 0 {
		if ok, err := h.serveCached(c, key); ok || err != nil {
			return err
		}
	}

	res, err := h.alerts.GetAlerts(c.Request().Context(), usecase.GetAlertsParams{
		Symbol:        req.Symbol,
		N:             req.N,
		Timeframe:     tf,
		OnlyTriggered: req.OnlyTriggered,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		h.logger.Error("alerts usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !req.OnlyTriggered && req.MinConfidence == 0 {
		h.storeCached(key, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Watchlist(c echo.Context) error {
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.watchlist.GetWatchlist(c.Request().Context(), usecase.GetWatchlistParams{
		Symbol:    req.Symbol,
		N:         req.N,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("watchlist usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	key := "candles:" + req.Symbol + ":" + string(tf)
	if ok, err := h.serveCached(c, key); ok || err != nil {
		return err
	}

	res, err := h.candles.GetLatest(c.Request().Context(), req.Symbol, req.N, tf)
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.storeCached(key, res)
	return xhttp.SuccessResponse(c, res)
}

// serveCached writes the cached body when present. The bool reports a hit.
func (h *MarketEchoHandler) serveCached(c echo.Context, key string) (bool, error) {
	if h.cache == nil {
		return false, nil
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("cache get", xlogger.String("key", key), xlogger.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}
	var data interface{}
	if err := json.Unmarshal(b, &data); err != nil {
		return false, nil
	}
	return true, xhttp.SuccessResponse(c, data)
}

func (h *MarketEchoHandler) storeCached(key string, data interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, h.cacheTTL); err != nil {
		h.logger.Warn("cache set", xlogger.String("key", key), xlogger.Error(err))
	}
}
