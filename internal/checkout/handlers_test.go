package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

const testSession = "0b9d6a52-3f7e-4c1a-8d2b-5e6f7a8b9c0d"

func newTestRouter(store snapshot.Store) http.Handler {
	deps := cart.Deps{Store: store, Bus: &events.Bus{}}
	v := common.NewValidator()
	ch := &cart.Handler{Deps: deps, Validator: v, Currency: "NGN"}
	h := &Handler{Svc: newService(store, order.NewMemorySequence(0)), Deps: deps, Validator: v, Currency: "NGN"}

	r := chi.NewRouter()
	r.Use(cart.SessionCookie{}.Middleware)
	r.Post("/cart/items", ch.AddItem)
	r.Get("/cart", ch.Get)
	r.Get("/plans", h.Plans)
	r.Post("/quote", h.Quote)
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/confirmation", h.Confirmation)
	return r
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(common.SessionHeader, testSession)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Data
}

func TestPlansListsOptions(t *testing.T) {
	router := newTestRouter(snapshot.NewMemoryStore())

	rr := call(t, router, http.MethodGet, "/plans", "")
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeData(t, rr)
	require.Equal(t, []any{1.0, 3.0, 6.0, 9.0, 12.0, 24.0}, data["durations"])
	require.Equal(t, "downPaymentSplit", data["defaultPolicy"])
	require.Equal(t, 5000.0, data["defaultDeliveryFee"])
	require.Len(t, data["destinations"], 1)
}

func TestQuoteHTTP(t *testing.T) {
	router := newTestRouter(snapshot.NewMemoryStore())

	rr := call(t, router, http.MethodPost, "/quote", `{"subtotal":100000,"installmentMonths":6}`)
	require.Equal(t, http.StatusOK, rr.Code)
	breakdown := decodeData(t, rr)["breakdown"].(map[string]any)
	require.Equal(t, 122625.0, breakdown["finalTotal"])
	require.Equal(t, "installment", breakdown["paymentType"])

	rr = call(t, router, http.MethodPost, "/quote", `{"subtotal":100000,"installmentMonths":7}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "installmentMonths")

	rr = call(t, router, http.MethodPost, "/quote", `{"subtotal":100000,"policy":"lease"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), common.CodeValidation)
}

func TestCheckoutHTTPFlow(t *testing.T) {
	router := newTestRouter(snapshot.NewMemoryStore())

	rr := call(t, router, http.MethodGet, "/orders/confirmation", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(t, router, http.MethodPost, "/checkout", `{"installmentMonths":0}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "cart")

	rr = call(t, router, http.MethodPost, "/cart/items", `{"itemId":3,"unitPrice":100000,"quantity":1}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = call(t, router, http.MethodPost, "/checkout", `{"installmentMonths":6,"policy":"flatRentalFee"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := decodeData(t, rr)
	conf := data["confirmation"].(map[string]any)
	require.Equal(t, "MBL-000001", conf["orderNumber"])
	require.Equal(t, 119250.0, conf["totalAmount"])
	require.Equal(t, 19875.0, conf["monthlyPayment"])
	require.NotEmpty(t, data["notices"])

	rr = call(t, router, http.MethodGet, "/cart", "")
	require.Equal(t, 0.0, decodeData(t, rr)["itemCount"])

	rr = call(t, router, http.MethodGet, "/orders/confirmation", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "MBL-000001", decodeData(t, rr)["orderNumber"])
}

func TestConfirmationCorruptSnapshotIsNotFound(t *testing.T) {
	store := snapshot.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), order.ConfirmationKey(testSession), "{not json"))
	router := newTestRouter(store)

	rr := call(t, router, http.MethodGet, "/orders/confirmation", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
