// Package checkout prices session carts and confirms orders.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/pricing"
	"github.com/noah-isme/backend-mebel/internal/shipping"
)

// Input is the plan a customer picks at checkout.
type Input struct {
	InstallmentMonths int    `json:"installmentMonths"`
	IncludeInsurance  bool   `json:"includeInsurance"`
	Destination       string `json:"destination" validate:"max=100"`
	Policy            string `json:"policy" validate:"omitempty,oneof=downPaymentSplit flatRentalFee"`
	// Subtotal prices an explicit amount instead of the session cart. Quote only.
	Subtotal *int64 `json:"subtotal,omitempty"`
}

// Quote is a breakdown together with the delivery fee resolution behind it.
type Quote struct {
	Breakdown pricing.Breakdown `json:"breakdown"`
	Delivery  shipping.Quote    `json:"delivery"`
}

// Result is returned by a successful confirmation.
type Result struct {
	Confirmation order.Confirmation `json:"confirmation"`
	Breakdown    pricing.Breakdown  `json:"breakdown"`
}

// Service prices carts and records confirmations.
type Service struct {
	Rates         pricing.Rates
	DefaultPolicy pricing.Policy
	Durations     pricing.Durations
	Fees          shipping.Resolver
	Sequence      order.Sequence
	Confirmations order.Confirmations
	NumberPrefix  string
	Metrics       *obs.DomainMetrics
	Logger        zerolog.Logger
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) durations() pricing.Durations {
	if len(s.Durations) == 0 {
		return pricing.DefaultDurations()
	}
	return s.Durations
}

func (s *Service) engine(name string) (*pricing.Engine, error) {
	policy := s.DefaultPolicy
	if name != "" {
		p, err := pricing.PolicyByName(name)
		if err != nil {
			return nil, &pricing.ValidationError{Field: "policy", Reason: "unknown policy"}
		}
		policy = p
	}
	return pricing.NewEngine(s.Rates, policy), nil
}

// Price computes the breakdown for subtotal under in.
func (s *Service) Price(ctx context.Context, subtotal int64, in Input) (Quote, error) {
	engine, err := s.engine(in.Policy)
	if err != nil {
		return Quote{}, s.rejected("unknown", err)
	}
	if in.InstallmentMonths >= 0 && !s.durations().Supports(in.InstallmentMonths) {
		return Quote{}, s.rejected(engine.Policy.Name(), &pricing.ValidationError{
			Field:  "installmentMonths",
			Reason: fmt.Sprintf("%d months is not an offered plan", in.InstallmentMonths),
		})
	}
	var delivery shipping.Quote
	if s.Fees != nil {
		delivery = s.Fees.Resolve(ctx, in.Destination)
	} else {
		delivery = shipping.Quote{Destination: in.Destination, Fee: pricing.DefaultDeliveryFee, Default: true}
	}
	b, err := engine.Compute(subtotal, pricing.Plan{
		InstallmentMonths: in.InstallmentMonths,
		IncludeInsurance:  in.IncludeInsurance,
		DeliveryFee:       delivery.Fee,
	})
	if err != nil {
		return Quote{}, s.rejected(engine.Policy.Name(), err)
	}
	s.Metrics.Breakdown(b.Policy, string(b.PaymentType), "ok")
	return Quote{Breakdown: b, Delivery: delivery}, nil
}

// Quote prices the session cart, or in.Subtotal when set.
func (s *Service) Quote(ctx context.Context, c cart.Cart, in Input) (Quote, error) {
	subtotal := c.Subtotal()
	if in.Subtotal != nil {
		subtotal = *in.Subtotal
	}
	return s.Price(ctx, subtotal, in)
}

// Confirm prices the session cart, records the confirmation and clears the
// cart. The cart is left intact when the confirmation cannot be stored.
func (s *Service) Confirm(ctx context.Context, sess *cart.Session, in Input) (res Result, err error) {
	ctx, span := obs.StartSpan(ctx, "checkout.confirm", attribute.Int("cart.lines", sess.Cart().Len()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		} else {
			span.SetAttributes(attribute.String("order.number", res.Confirmation.OrderNumber))
		}
		span.End()
	}()

	c := sess.Cart()
	if c.IsEmpty() {
		return Result{}, &pricing.ValidationError{Field: "cart", Reason: "cart is empty"}
	}
	in.Subtotal = nil
	q, err := s.Quote(ctx, c, in)
	if err != nil {
		return Result{}, err
	}
	if s.Sequence == nil {
		return Result{}, errors.New("checkout: order sequence not configured")
	}
	id, err := s.Sequence.Next(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("checkout: allocate order id: %w", err)
	}
	conf := order.Confirmation{
		OrderID:           id,
		OrderNumber:       order.Number(id, s.NumberPrefix),
		TotalAmount:       q.Breakdown.FinalTotal,
		InstallmentMonths: q.Breakdown.InstallmentMonths,
		MonthlyPayment:    q.Breakdown.MonthlyPayment,
		PaymentType:       string(q.Breakdown.PaymentType),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.Confirmations.Save(ctx, sess.ID(), conf); err != nil {
		return Result{}, fmt.Errorf("checkout: save confirmation: %w", err)
	}
	sess.Clear(ctx)
	sess.Emit(ctx, events.Notice{
		Topic:   events.TopicOrderConfirmed,
		Subject: conf.OrderNumber,
		Message: "order " + conf.OrderNumber + " confirmed",
		Data: map[string]any{
			"orderId":     conf.OrderID,
			"totalAmount": conf.TotalAmount,
			"paymentType": conf.PaymentType,
		},
	})
	s.Metrics.OrderConfirmed(conf.PaymentType, conf.TotalAmount)
	s.Logger.Info().
		Str("session_id", sess.ID()).
		Str("order_number", conf.OrderNumber).
		Int64("total", conf.TotalAmount).
		Int("months", conf.InstallmentMonths).
		Msg("order confirmed")
	return Result{Confirmation: conf, Breakdown: q.Breakdown}, nil
}

// Confirmation returns the last confirmation recorded for the session.
func (s *Service) Confirmation(ctx context.Context, sessionID string) (order.Confirmation, error) {
	return s.Confirmations.Load(ctx, sessionID)
}

func (s *Service) rejected(policy string, err error) error {
	if pricing.IsValidation(err) {
		s.Metrics.Breakdown(policy, "", "invalid")
	}
	return err
}
