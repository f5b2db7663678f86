package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRoutes func(e *echo.Echo)

func (f echoRoutes) RegisterRoutes(e *echo.Echo) { f(e) }

type probeRequest struct {
	Symbol string  `json:"symbol" validate:"required"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Side   string  `json:"side" default:"buy" validate:"oneof=buy sell"`
}

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	routes := echoRoutes(func(e *echo.Echo) {
		e.POST("/probe", func(c echo.Context) error {
			req := &probeRequest{}
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundErrorf("no desk for %s", "ETH/USDT"))
		})
		e.GET("/boom", func(c echo.Context) error {
			panic("handler exploded")
		})
	})
	return NewServer(routes, WithPrometheus(reg, reg)), reg
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerValidatesAndAppliesDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/probe", `{"symbol":"BTC/USDT","amount":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int          `json:"status"`
		Data   probeRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "buy", resp.Data.Side)
}

func TestServerReportsValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/probe", `{"amount":-1,"side":"short"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int               `json:"status"`
		Data   []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	codes := map[string]string{}
	for _, e := range resp.Data {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", codes["symbol"])
	assert.Equal(t, "ERR_GT", codes["amount"])
	assert.Equal(t, "ERR_ONEOF", codes["side"])
}

func TestServerAppErrorAndPanic(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/missing", "")
	assert.Contains(t, rec.Body.String(), `"status":404`)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	var resp struct {
		Data []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "no desk for ETH/USDT", resp.Data[0].Message)

	rec = serve(s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerExposesRequestMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", "").Code)

	rec := serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `areopagus_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestServerAnswersPreflightForAllowedOrigin(t *testing.T) {
	reg := prometheus.NewRegistry()
	routes := echoRoutes(func(e *echo.Echo) {
		e.POST("/probe", func(c echo.Context) error { return SuccessResponse(c, nil) })
	})
	s := NewServer(routes, WithPrometheus(reg, reg), WithCORSOrigins([]string{"https://desk.example"}))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/probe", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://desk.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)

	rec = preflight("https://elsewhere.example")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
