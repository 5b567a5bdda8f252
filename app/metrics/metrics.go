package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "school_payments"

type Metrics struct {
	OrdersCreatedTotal     *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	WebhookCallbacksTotal  *prometheus.CounterVec
	OrdersSweptTotal       prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the service collectors on reg. Passing nil uses a fresh
// registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		OrdersCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Payment creation attempts by result.",
		}, []string{"result"}),
		GatewayRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of create-collect-request calls to the payment gateway.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		WebhookCallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_callbacks_total",
			Help:      "Gateway webhook callbacks by result.",
		}, []string{"result"}),
		OrdersSweptTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_swept_total",
			Help:      "Orders moved from pending_submission to submission_failed by the sweep job.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) OrderCreated(result string) {
	m.OrdersCreatedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) GatewayRequest(outcome string, elapsed time.Duration) {
	m.GatewayRequestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) WebhookCallback(result string) {
	m.WebhookCallbacksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) OrdersSwept(n int) {
	m.OrdersSweptTotal.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
