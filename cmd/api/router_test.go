package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/checkout"
	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/config"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/health"
	"github.com/noah-isme/backend-mebel/internal/lock"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/ratelimit"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

func testRouter(t *testing.T, rate string) http.Handler {
	t.Helper()
	cfg, err := config.LoadForTests(map[string]string{"PLAN_CATALOG_PATH": "", "REDIS_URL": ""})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := obs.NewDomainMetrics("mebel", reg)
	store := snapshot.NewMemoryStore()
	deps := cart.Deps{Store: store, Bus: &events.Bus{Notifiers: []events.Notifier{metrics}}, Logger: zerolog.Nop(), Metrics: metrics}
	v := common.NewValidator()
	svc := &checkout.Service{
		Rates:         cfg.Rates,
		DefaultPolicy: cfg.Policy(),
		Durations:     cfg.InstallmentMonths,
		Fees:          cfg.FeeTable(),
		Sequence:      order.NewMemorySequence(41),
		Confirmations: order.Confirmations{Store: store},
		NumberPrefix:  cfg.OrderNumberPrefix,
		Metrics:       metrics,
		Logger:        zerolog.Nop(),
	}
	lim, err := ratelimit.New(rate, nil)
	require.NoError(t, err)

	return newRouter(routes{
		Config:      cfg,
		Logger:      zerolog.Nop(),
		Cart:        &cart.Handler{Deps: deps, Validator: v, Currency: cfg.CurrencyCode},
		Checkout:    &checkout.Handler{Svc: svc, Deps: deps, Validator: v, Currency: cfg.CurrencyCode},
		Health:      health.Handler{Probes: map[string]health.Pinger{"snapshots": store}},
		Limiter:     ratelimit.Handler{Limiter: lim},
		Locker:      &lock.Local{},
		HTTPMetrics: obs.NewHTTPMetrics("mebel", nil, reg),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func send(t *testing.T, h http.Handler, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if session != "" {
		req.Header.Set(common.SessionHeader, session)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStorefrontFlow(t *testing.T) {
	router := testRouter(t, "100-M")

	rr := send(t, router, http.MethodGet, "/api/v1/cart", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Header().Get(common.SessionHeader)
	require.NotEmpty(t, session)
	require.NotEmpty(t, rr.Result().Cookies())

	rr = send(t, router, http.MethodPost, "/api/v1/cart/items", session, `{"itemId":1,"unitPrice":50000,"quantity":2,"color":"teak"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, router, http.MethodPost, "/api/v1/checkout", session, `{"installmentMonths":6}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var body struct {
		Data struct {
			Confirmation order.Confirmation `json:"confirmation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "MBL-000042", body.Data.Confirmation.OrderNumber)
	require.Equal(t, int64(122_625), body.Data.Confirmation.TotalAmount)

	rr = send(t, router, http.MethodGet, "/api/v1/orders/confirmation", session, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "mebel_orders_confirmed_total")
	require.Contains(t, rr.Body.String(), "mebel_http_requests_total")
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t, "100-M")
	require.Equal(t, http.StatusOK, send(t, router, http.MethodGet, "/health/live", "", "").Code)
	rr := send(t, router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestWritesAreRateLimited(t *testing.T) {
	router := testRouter(t, "1-M")
	session := "2d4c6e8a-0b1c-4d3e-9f5a-7b8c9d0e1f2a"

	require.Equal(t, http.StatusOK, send(t, router, http.MethodDelete, "/api/v1/cart", session, "").Code)
	require.Equal(t, http.StatusTooManyRequests, send(t, router, http.MethodDelete, "/api/v1/cart", session, "").Code)
	require.Equal(t, http.StatusOK, send(t, router, http.MethodGet, "/api/v1/cart", session, "").Code)
}
