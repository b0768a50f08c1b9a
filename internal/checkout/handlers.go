package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/pricing"
	"github.com/noah-isme/backend-mebel/internal/shipping"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

// Handler exposes plan listing, quoting and checkout over HTTP.
type Handler struct {
	Svc       *Service
	Deps      cart.Deps
	Validator *common.Validator
	Currency  string
}

// PlansView lists what a customer can choose from at checkout.
type PlansView struct {
	Durations          []int            `json:"durations"`
	DefaultPolicy      string           `json:"defaultPolicy"`
	Policies           []string         `json:"policies"`
	Destinations       []shipping.Quote `json:"destinations"`
	DefaultDeliveryFee int64            `json:"defaultDeliveryFee"`
	Rates              ratesView        `json:"rates"`
	Currency           string           `json:"currency,omitempty"`
}

type ratesView struct {
	VATBps         int64 `json:"vatBps"`
	InsuranceBps   int64 `json:"insuranceBps"`
	DownPaymentBps int64 `json:"downPaymentBps"`
	ServiceFeeBps  int64 `json:"serviceFeeBps"`
	RentalFeeBps   int64 `json:"rentalFeeBps"`
}

type quoteResponse struct {
	Quote
	Currency string `json:"currency,omitempty"`
}

type checkoutResponse struct {
	Result
	Currency string          `json:"currency,omitempty"`
	Notices  []events.Notice `json:"notices,omitempty"`
}

// Plans returns offered durations, policies, destinations and rates.
func (h *Handler) Plans(w http.ResponseWriter, _ *http.Request) {
	view := PlansView{
		Durations:          h.Svc.durations(),
		DefaultPolicy:      pricing.PolicyDownPaymentSplit,
		Policies:           []string{pricing.PolicyDownPaymentSplit, pricing.PolicyFlatRentalFee},
		Destinations:       []shipping.Quote{},
		DefaultDeliveryFee: pricing.DefaultDeliveryFee,
		Rates: ratesView{
			VATBps:         h.Svc.Rates.VATBps,
			InsuranceBps:   h.Svc.Rates.InsuranceBps,
			DownPaymentBps: h.Svc.Rates.DownPaymentBps,
			ServiceFeeBps:  h.Svc.Rates.ServiceFeeBps,
			RentalFeeBps:   h.Svc.Rates.RentalFeeBps,
		},
		Currency: h.Currency,
	}
	if h.Svc.DefaultPolicy != nil {
		view.DefaultPolicy = h.Svc.DefaultPolicy.Name()
	}
	if table, ok := h.Svc.Fees.(*shipping.FeeTable); ok {
		view.Destinations = table.Destinations()
		view.DefaultDeliveryFee = table.Fallback()
	}
	common.Data(w, http.StatusOK, view)
}

// Quote prices the session cart, or an explicit subtotal, without side effects.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := h.Validator.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	var c cart.Cart
	if in.Subtotal == nil {
		s, _ := cart.OpenRequest(r, h.Deps)
		c = s.Cart()
	}
	q, err := h.Svc.Quote(r.Context(), c, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quoteResponse{Quote: q, Currency: h.Currency})
}

// Checkout confirms the session cart as an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := h.Validator.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	s, rec := cart.OpenRequest(r, h.Deps)
	res, err := h.Svc.Confirm(r.Context(), s, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, checkoutResponse{Result: res, Currency: h.Currency, Notices: rec.Notices()})
}

// Confirmation returns the session's most recent order confirmation.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	id, _ := common.SessionID(r.Context())
	conf, err := h.Svc.Confirmation(r.Context(), id)
	switch {
	case errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no order confirmation for this session", nil)
		return
	case errors.Is(err, snapshot.ErrPersistence):
		h.Svc.Logger.Warn().Err(err).Str("session_id", id).Msg("unreadable order confirmation")
		h.Svc.Metrics.SnapshotFailure("load")
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no order confirmation for this session", nil)
		return
	case err != nil:
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, conf)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *pricing.ValidationError
	if errors.As(err, &verr) {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, verr.Error(),
			map[string]string{"field": verr.Field, "reason": verr.Reason})
		return
	}
	h.Svc.Logger.Error().Err(err).Msg("checkout failed")
	common.WriteError(w, err)
}
