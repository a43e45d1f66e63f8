package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	models "EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/internal/forecast"
	icache "EventCast/internal/service/cache"
	"EventCast/internal/service/ratelimit"
	"EventCast/internal/usecase"
	xhttp "EventCast/pkg/http"
	xlogger "EventCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler exposes the forecast read path over HTTP.
type ForecastHandler struct {
	logger   *xlogger.Logger
	fc       *usecase.Forecaster
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
	cacheTTL time.Duration
}

func NewForecastHandler(logger *xlogger.Logger, fc *usecase.Forecaster, cacheTTL time.Duration) *ForecastHandler {
	return &ForecastHandler{logger: logger, fc: fc, rl: ratelimit.New(), cacheTTL: cacheTTL}
}

// SetCache enables response caching.
func (h *ForecastHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/regime", h.Regime)
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":forecast", 10, 5) {
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	asOf, verr := parseAsOf(req.AsOf)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	horizon := domrepo.NormalizeHorizon(req.Horizon)

	key := fmt.Sprintf("forecast:%s:%s:%d:%s:%d", req.TargetID, horizon, asOf.Unix(), req.AnchorEventID, req.K)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			var cached models.ForecastResult
			if json.Unmarshal(b, &cached) == nil {
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	res, err := h.fc.Forecast(c.Request().Context(), req.TargetID, horizon, asOf, req.AnchorEventID, req.K)
	if err != nil {
		return h.forecastError(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.SetBytes(key, b, h.cacheTTL); err != nil && h.logger != nil {
				h.logger.Warn("forecast cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, verr := parseAsOf(req.AsOf)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	horizon := domrepo.NormalizeHorizon(req.Horizon)

	label, pctx, err := h.fc.ClassifyRegime(c.Request().Context(), req.TargetID, horizon, asOf, req.N)
	if err != nil {
		return h.forecastError(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"target_id":         req.TargetID,
		"as_of":             asOf,
		"regime":            label,
		"cumulative_return": pctx.CumulativeReturn,
		"volatility":        pctx.Volatility,
		"window":            pctx.WindowSize,
		"ready":             pctx.Ready,
	})
}

func (h *ForecastHandler) forecastError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, forecast.ErrUnknownTarget):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, domrepo.ErrEventNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, forecast.ErrNoHistory):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		if h.logger != nil {
			h.logger.Error("forecast usecase error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
}

// parseAsOf interprets the as_of query parameter. Empty means "now";
// anything else must parse to an explicit instant, normalized to UTC.
func parseAsOf(s string) (time.Time, interface{}) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, ok := xhttp.ParseTime(s)
	if !ok {
		return time.Time{}, []xhttp.ValidationError{{
			Code:    "ERR_TIMESTAMP",
			Field:   "as_of",
			Message: "as_of must be RFC3339 or unix seconds",
		}}
	}
	return t.UTC(), nil
}
