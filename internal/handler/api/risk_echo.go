package api

import (
	"errors"
	"io"

	"github.com/labstack/echo/v4"

	"Areopagus/internal/domain/models"
	"Areopagus/internal/service/ratelimit"
	"Areopagus/internal/services/risk"
	"Areopagus/internal/usecase"
	xhttp "Areopagus/pkg/http"
	xlogger "Areopagus/pkg/logger"
)

// Settings updates are limited per client to this burst and refill per second.
const (
	settingsBurst  = 5
	settingsRefill = 1
)

// RiskEchoHandler exposes engine status and the risk gate operations over HTTP.
type RiskEchoHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
	rl     *ratelimit.Limiter
}

func NewRiskEchoHandler(logger *xlogger.Logger, engine *usecase.Engine) *RiskEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RiskEchoHandler{logger: logger, engine: engine, rl: ratelimit.New()}
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/weights", h.Weights)
	g.POST("/candles", h.Candle)

	r := g.Group("/risk")
	r.GET("/settings", h.Settings)
	r.PUT("/settings", h.UpdateSettings)
	r.POST("/balance", h.UpdateBalance)
	r.POST("/validate", h.Validate)
	r.POST("/size", h.Size)
	r.POST("/impact", h.Impact)
	r.POST("/exit", h.Exit)
}

func (h *RiskEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Status())
}

func (h *RiskEchoHandler) Weights(c echo.Context) error {
	weights := map[string]float64{}
	if m := h.engine.Merit(); m != nil {
		weights = m.Snapshot()
	}
	return xhttp.SuccessResponse(c, weights)
}

// Candle runs one candle through the engine, the same path a Kafka candle takes.
func (h *RiskEchoHandler) Candle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("unreadable body").Wrap(err))
	}
	candle, err := usecase.DecodeCandle(body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	res, err := h.engine.Tick(c.Request().Context(), candle.Symbol, candle)
	if errors.Is(err, usecase.ErrUnknownSymbol) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no council for %s", candle.Symbol))
	}
	if err != nil {
		h.logger.Error("tick failed", xlogger.String("symbol", candle.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("tick failed").Wrap(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Settings(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Risk().Settings())
}

func (h *RiskEchoHandler) UpdateSettings(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":settings", settingsBurst, settingsRefill) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many settings updates"))
	}
	values := map[string]float64{}
	if err := c.Bind(&values); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("settings must be an object of numeric values").Wrap(err))
	}
	applied := h.engine.Risk().UpdateSettings(values)
	h.logger.Info("risk settings updated over http", xlogger.Strings("keys", applied), xlogger.String("remote", c.RealIP()))
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"applied":  applied,
		"settings": h.engine.Risk().Settings(),
	})
}

func (h *RiskEchoHandler) UpdateBalance(c echo.Context) error {
	req := &models.BalanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	gate := h.engine.Risk()
	gate.UpdateBalance(req.Balance)
	initial, _ := gate.InitialBalance()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"kill_switch":     gate.KillSwitchState(),
		"initial_balance": initial,
		"stage":           gate.Stage(req.Balance),
	})
}

func (h *RiskEchoHandler) Validate(c echo.Context) error {
	req := &models.ValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	verdict := h.engine.Risk().ValidateTrade(req.Signal, req.Balance, req.Price)
	return xhttp.SuccessResponse(c, verdict)
}

func (h *RiskEchoHandler) Size(c echo.Context) error {
	req := &models.SizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	opts := []risk.SizingOption{risk.WithWinRate(req.WinRate), risk.WithWinLossRatio(req.WinLossRatio)}
	if req.OrderBook != nil {
		opts = append(opts, risk.WithOrderBook(req.OrderBook, req.Side))
	}
	amount := h.engine.Risk().CalculatePositionSize(req.Balance, req.Price, opts...)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"amount": amount,
		"value":  amount * req.Price,
		"stage":  h.engine.Risk().Stage(req.Balance),
	})
}

func (h *RiskEchoHandler) Impact(c echo.Context) error {
	req := &models.ImpactRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"impact":   risk.EstimateImpact(req.Amount, &req.OrderBook, req.Side),
		"adjusted": h.engine.Risk().AdjustForLiquidity(req.Amount, &req.OrderBook, req.Side),
	})
}

func (h *RiskEchoHandler) Exit(c echo.Context) error {
	req := &models.ExitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	reason := h.engine.Risk().CheckExitConditions(req.Current, req.Entry, req.Side)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"exit":   reason != models.ExitNone,
		"reason": reason,
	})
}

var _ xhttp.Handler = (*RiskEchoHandler)(nil)
