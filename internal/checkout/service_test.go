package checkout

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/pricing"
	"github.com/noah-isme/backend-mebel/internal/shipping"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(store snapshot.Store, seq order.Sequence) *Service {
	return &Service{
		Rates:         pricing.DefaultRates(),
		Durations:     pricing.DefaultDurations(),
		Fees:          shipping.NewFeeTable(map[string]int64{"lagos": 3000}, 5000),
		Sequence:      seq,
		Confirmations: order.Confirmations{Store: store},
		NumberPrefix:  order.DefaultNumberPrefix,
		Logger:        zerolog.Nop(),
		Now:           func() time.Time { return fixedNow },
	}
}

func seededSession(t *testing.T, store snapshot.Store, bus *events.Bus) *cart.Session {
	t.Helper()
	s := cart.LoadSession(context.Background(), "s1", cart.Deps{Store: store, Bus: bus})
	_, err := s.Add(context.Background(), cart.LineItem{
		ItemID: 1, UnitPrice: 50_000, Quantity: 2,
		Variant: cart.VariantKey{Mode: cart.ModePurchase, Color: "walnut"},
	})
	require.NoError(t, err)
	return s
}

func TestQuoteUsesCartSubtotalAndDefaultFee(t *testing.T) {
	svc := newService(snapshot.NewMemoryStore(), order.NewMemorySequence(0))
	c := cart.New(cart.LineItem{ItemID: 1, UnitPrice: 50_000, Quantity: 2, Variant: cart.VariantKey{Mode: cart.ModePurchase}})

	q, err := svc.Quote(context.Background(), c, Input{InstallmentMonths: 6, Destination: "Abuja"})
	require.NoError(t, err)
	require.True(t, q.Delivery.Default)
	require.Equal(t, int64(5000), q.Breakdown.DeliveryFee)
	require.Equal(t, int64(122_625), q.Breakdown.FinalTotal)
	require.Equal(t, int64(7313), q.Breakdown.MonthlyPayment)
	require.Equal(t, pricing.PolicyDownPaymentSplit, q.Breakdown.Policy)
}

func TestQuoteExplicitSubtotalAndDestination(t *testing.T) {
	svc := newService(nil, nil)
	subtotal := int64(100_000)

	q, err := svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &subtotal, Destination: " LAGOS "})
	require.NoError(t, err)
	require.False(t, q.Delivery.Default)
	require.Equal(t, "lagos", q.Delivery.Destination)
	require.Equal(t, int64(110_500), q.Breakdown.FinalTotal)
}

func TestQuotePolicyOverride(t *testing.T) {
	svc := newService(nil, nil)
	subtotal := int64(100_000)

	q, err := svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &subtotal, InstallmentMonths: 6, Policy: pricing.PolicyFlatRentalFee})
	require.NoError(t, err)
	require.Equal(t, int64(119_250), q.Breakdown.FinalTotal)
	require.Equal(t, int64(19_875), q.Breakdown.MonthlyPayment)
	require.Equal(t, pricing.PolicyFlatRentalFee, q.Breakdown.Policy)
}

func TestQuoteRejectsUnsupportedDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newService(nil, nil)
	svc.Metrics = obs.NewDomainMetrics("mebel", reg)
	subtotal := int64(100_000)

	_, err := svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &subtotal, InstallmentMonths: 5})
	var verr *pricing.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "installmentMonths", verr.Field)

	_, err = svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &subtotal, Policy: "lease"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "policy", verr.Field)

	negative := int64(-1)
	_, err = svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &negative})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "subtotal", verr.Field)

	require.Equal(t, 2.0, testutil.ToFloat64(svc.Metrics.BreakdownsTotal.WithLabelValues(pricing.PolicyDownPaymentSplit, "", "invalid")))
	require.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.BreakdownsTotal.WithLabelValues("unknown", "", "invalid")))
}

func TestQuoteRejectsSubtotalThatWouldOverflow(t *testing.T) {
	svc := newService(nil, nil)
	var verr *pricing.ValidationError

	huge := int64(math.MaxInt64 - 1000)
	_, err := svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &huge, InstallmentMonths: 6})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "subtotal", verr.Field)

	limit := pricing.MaxAmount
	q, err := svc.Quote(context.Background(), cart.Cart{}, Input{Subtotal: &limit, InstallmentMonths: 24, IncludeInsurance: true})
	require.NoError(t, err)
	require.Positive(t, q.Breakdown.FinalTotal)
	require.Positive(t, q.Breakdown.MonthlyPayment)
}

func TestConfirmRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	store := snapshot.NewMemoryStore()
	svc := newService(store, order.NewMemorySequence(6))
	s := seededSession(t, store, nil)

	_, err := svc.Confirm(context.Background(), s, Input{})
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), s, Input{})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "checkout.confirm", spans[0].Name())
	var number string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "order.number" {
			number = kv.Value.AsString()
		}
	}
	require.Equal(t, "MBL-000007", number)
	require.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestConfirmRecordsOrderAndClearsCart(t *testing.T) {
	store := snapshot.NewMemoryStore()
	rec := &events.Recorder{}
	svc := newService(store, order.NewMemorySequence(41))
	s := seededSession(t, store, &events.Bus{Notifiers: []events.Notifier{rec}})

	res, err := svc.Confirm(context.Background(), s, Input{InstallmentMonths: 6})
	require.NoError(t, err)
	require.Equal(t, int64(42), res.Confirmation.OrderID)
	require.Equal(t, "MBL-000042", res.Confirmation.OrderNumber)
	require.Equal(t, int64(122_625), res.Confirmation.TotalAmount)
	require.Equal(t, int64(7313), res.Confirmation.MonthlyPayment)
	require.Equal(t, string(pricing.PaymentInstallment), res.Confirmation.PaymentType)
	require.Equal(t, fixedNow, res.Confirmation.CreatedAt)
	require.True(t, s.Cart().IsEmpty())

	raw, ok, err := store.Get(context.Background(), cart.SnapshotKey("s1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", raw)

	stored, err := svc.Confirmation(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, res.Confirmation, stored)

	notices := rec.Notices()
	require.Equal(t, events.TopicOrderConfirmed, notices[len(notices)-1].Topic)
	require.Equal(t, "MBL-000042", notices[len(notices)-1].Subject)
}

func TestConfirmEmptyCart(t *testing.T) {
	store := snapshot.NewMemoryStore()
	svc := newService(store, order.NewMemorySequence(0))
	s := cart.LoadSession(context.Background(), "s1", cart.Deps{Store: store})

	_, err := svc.Confirm(context.Background(), s, Input{})
	var verr *pricing.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "cart", verr.Field)

	_, err = svc.Confirmation(context.Background(), "s1")
	require.ErrorIs(t, err, order.ErrNotFound)
}

type failingSequence struct{}

func (failingSequence) Next(context.Context) (int64, error) { return 0, errors.New("boom") }

func TestConfirmKeepsCartWhenSequenceFails(t *testing.T) {
	store := snapshot.NewMemoryStore()
	svc := newService(store, failingSequence{})
	s := seededSession(t, store, nil)

	_, err := svc.Confirm(context.Background(), s, Input{})
	require.Error(t, err)
	require.Equal(t, 1, s.Cart().Len())
}

func TestConfirmWithRedisSequence(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := snapshot.NewRedisStore(client, "", time.Hour)
	svc := newService(store, order.RedisSequence{Client: client})
	s := seededSession(t, store, nil)

	res, err := svc.Confirm(context.Background(), s, Input{IncludeInsurance: true})
	require.NoError(t, err)
	require.Equal(t, "MBL-000001", res.Confirmation.OrderNumber)
	require.Equal(t, int64(114_500), res.Confirmation.TotalAmount)
	require.Equal(t, string(pricing.PaymentFull), res.Confirmation.PaymentType)
	require.True(t, mr.Exists(order.ConfirmationKey("s1")))
}
