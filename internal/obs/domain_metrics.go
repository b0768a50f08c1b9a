package obs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/backend-mebel/internal/events"
)

// DomainMetrics holds storefront-specific collectors. A nil receiver records nothing.
type DomainMetrics struct {
	BreakdownsTotal  *prometheus.CounterVec
	SnapshotFailures *prometheus.CounterVec
	NoticesTotal     *prometheus.CounterVec
	OrdersConfirmed  *prometheus.CounterVec
	OrderValue       *prometheus.HistogramVec
}

// NewDomainMetrics registers domain collectors on reg (default registerer when nil).
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		BreakdownsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_breakdowns_total",
			Help:      "Payment breakdowns computed by policy, payment type and result.",
		}, []string{"policy", "payment_type", "result"})),
		SnapshotFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Snapshot store failures that were recovered locally.",
		}, []string{"operation"})),
		NoticesTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "User-facing notices emitted by topic.",
		}, []string{"topic"})),
		OrdersConfirmed: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Orders confirmed at checkout by payment type.",
		}, []string{"payment_type"})),
		OrderValue: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_final_total",
			Help:      "Distribution of confirmed order totals in currency units.",
			Buckets:   prometheus.ExponentialBuckets(10_000, 2.5, 10),
		}, []string{"payment_type"})),
	}
	// Every topic is exported at zero so rate queries see the series before the first notice.
	for _, topic := range events.DefaultTopics() {
		m.NoticesTotal.WithLabelValues(topic)
	}
	return m
}

// Breakdown counts a breakdown computation outcome.
func (m *DomainMetrics) Breakdown(policy, paymentType, result string) {
	if m == nil || m.BreakdownsTotal == nil {
		return
	}
	m.BreakdownsTotal.WithLabelValues(policy, paymentType, result).Inc()
}

// SnapshotFailure counts a recovered snapshot failure for operation (load, save, clear).
func (m *DomainMetrics) SnapshotFailure(operation string) {
	if m == nil || m.SnapshotFailures == nil {
		return
	}
	m.SnapshotFailures.WithLabelValues(operation).Inc()
}

// OrderConfirmed records a confirmed order and its final total.
func (m *DomainMetrics) OrderConfirmed(paymentType string, finalTotal int64) {
	if m == nil {
		return
	}
	if m.OrdersConfirmed != nil {
		m.OrdersConfirmed.WithLabelValues(paymentType).Inc()
	}
	if m.OrderValue != nil {
		m.OrderValue.WithLabelValues(paymentType).Observe(float64(finalTotal))
	}
}

// Notify implements events.Notifier by counting notices per topic.
func (m *DomainMetrics) Notify(_ context.Context, n events.Notice) error {
	if m == nil || m.NoticesTotal == nil {
		return nil
	}
	m.NoticesTotal.WithLabelValues(n.Topic).Inc()
	return nil
}
