package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the contacts store.
// Every instance owns its registry, so several stores can live in one process.
type Metrics struct {
	Registry            *prometheus.Registry
	Transactions        *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	Fetches             *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
}

// New creates a new Metrics instance with all contacts store metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		Registry: registry,
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_transactions_total",
			Help: "Total number of write transactions by operation and outcome",
		}, []string{"op", "outcome"}),
		TransactionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contacts_transaction_duration_seconds",
			Help:    "Duration of write transactions, including validation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_fetches_total",
			Help: "Total number of contact reads by outcome",
		}, []string{"outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_notifications_total",
			Help: "Change notifications by kind and delivery result",
		}, []string{"kind", "result"}),
	}
}

// ObserveTransaction records the outcome and duration of a write transaction.
func (m *Metrics) ObserveTransaction(op, outcome string, d time.Duration) {
	m.Transactions.WithLabelValues(op, outcome).Inc()
	m.TransactionDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveFetch counts a read by its outcome.
func (m *Metrics) ObserveFetch(outcome string) {
	m.Fetches.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a change notification as delivered or dropped for one subscriber.
func (m *Metrics) ObserveNotification(kind, result string) {
	m.Notifications.WithLabelValues(kind, result).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
