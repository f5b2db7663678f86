package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/repository"
	"Areopagus/internal/services/risk"
	"Areopagus/internal/usecase"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEcho(t *testing.T) (*echo.Echo, *usecase.Engine) {
	t.Helper()
	merit := usecase.NewMeritBook(nil, []string{"TrendAgent"})
	council := usecase.NewCouncil("BTC/USDT", nil, merit)
	engine, err := usecase.NewEngine([]*usecase.Council{council}, risk.NewManager(), merit,
		usecase.WithBalanceSource(repository.NewPaperBalance(10000)))
	require.NoError(t, err)

	e := echo.New()
	NewRiskEchoHandler(nil, engine).RegisterRoutes(e)
	return e, engine
}

func call(t *testing.T, e *echo.Echo, method, target, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestStatusAndWeights(t *testing.T) {
	e, _ := newTestEcho(t)

	env := call(t, e, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, env.Status)
	var st usecase.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "ACTIVE", st.KillSwitch)
	require.Len(t, st.Desks, 1)
	assert.Equal(t, "BTC/USDT", st.Desks[0].Symbol)

	env = call(t, e, http.MethodGet, "/api/weights", "")
	var weights map[string]float64
	require.NoError(t, json.Unmarshal(env.Data, &weights))
	assert.Equal(t, map[string]float64{"TrendAgent": 1.0}, weights)
}

func TestUpdateSettings(t *testing.T) {
	e, engine := newTestEcho(t)

	env := call(t, e, http.MethodPut, "/api/risk/settings", `{"MAX_SLIPPAGE_PCT":0.03,"UNKNOWN":1}`)
	require.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, 0.03, engine.Risk().Settings().MaxSlippagePct)

	var body struct {
		Applied []string `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, []string{"MAX_SLIPPAGE_PCT"}, body.Applied)

	env = call(t, e, http.MethodPut, "/api/risk/settings", `{"MAX_SLIPPAGE_PCT":"high"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestUpdateSettingsIsRateLimited(t *testing.T) {
	e, _ := newTestEcho(t)
	var last envelope
	for i := 0; i < settingsBurst+1; i++ {
		last = call(t, e, http.MethodPut, "/api/risk/settings", `{"STOP_LOSS_PCT":0.04}`)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Status)
}

func TestBalanceTripsKillSwitch(t *testing.T) {
	e, engine := newTestEcho(t)

	call(t, e, http.MethodPost, "/api/risk/balance", `{"balance":10000}`)
	env := call(t, e, http.MethodPost, "/api/risk/balance", `{"balance":8500}`)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "KILLED", body["kill_switch"])
	assert.True(t, engine.Risk().Killed())

	env = call(t, e, http.MethodPost, "/api/risk/validate", `{"signal":{"side":"buy","confidence":0.9},"balance":8500,"price":100}`)
	var verdict struct {
		Approved bool   `json:"approved"`
		Rule     string `json:"rule"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verdict))
	assert.False(t, verdict.Approved)
	assert.Equal(t, risk.RuleKillSwitch, verdict.Rule)
}

func TestValidateClampsSize(t *testing.T) {
	e, _ := newTestEcho(t)

	env := call(t, e, http.MethodPost, "/api/risk/validate",
		`{"signal":{"side":"buy","confidence":0.9,"size_pct":0.5},"balance":10000,"price":100}`)
	var verdict struct {
		Approved bool `json:"approved"`
		Signal   struct {
			SizePct float64 `json:"size_pct"`
		} `json:"signal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verdict))
	assert.True(t, verdict.Approved)
	assert.Equal(t, 0.05, verdict.Signal.SizePct)

	env = call(t, e, http.MethodPost, "/api/risk/validate", `{"signal":{"side":"up"},"balance":10000,"price":100}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestSizeImpactAndExit(t *testing.T) {
	e, _ := newTestEcho(t)
	call(t, e, http.MethodPost, "/api/risk/balance", `{"balance":10000}`)

	env := call(t, e, http.MethodPost, "/api/risk/size", `{"balance":10000,"price":100}`)
	var size map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &size))
	assert.InDelta(t, 5.0, size["amount"], 1e-9)
	assert.Equal(t, "SAPLING", size["stage"])

	env = call(t, e, http.MethodPost, "/api/risk/impact",
		`{"amount":1,"side":"buy","order_book":{"asks":[[101,0.5],[103,100]],"bids":[]}}`)
	var impact map[string]float64
	require.NoError(t, json.Unmarshal(env.Data, &impact))
	assert.InDelta(t, 1.0/101, impact["impact"], 1e-9)
	assert.InDelta(t, 1.0, impact["adjusted"], 1e-9)

	env = call(t, e, http.MethodPost, "/api/risk/exit", `{"current":94,"entry":100,"side":"buy"}`)
	var exit map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &exit))
	assert.Equal(t, true, exit["exit"])
	assert.Equal(t, "stop_loss", exit["reason"])
}

func TestCandleEndpoint(t *testing.T) {
	e, _ := newTestEcho(t)

	env := call(t, e, http.MethodPost, "/api/candles", `{"symbol":"BTC/USDT","timestamp":1700000000,"open":100,"high":101,"low":99,"close":100,"volume":3}`)
	require.Equal(t, http.StatusOK, env.Status)
	var res usecase.TickResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, usecase.SkipNoConsensus, res.Skipped)

	env = call(t, e, http.MethodPost, "/api/candles", `{"symbol":"ETH/USDT","timestamp":1700000000,"close":100}`)
	assert.Equal(t, http.StatusNotFound, env.Status)

	env = call(t, e, http.MethodPost, "/api/candles", `{"close":100}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}
