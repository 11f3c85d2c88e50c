// Package metrics exposes market counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bazaarcraft/internal/market"
)

type Metrics struct {
	registry *prometheus.Registry

	// Labels: direction, outcome
	transactions *prometheus.CounterVec
	// Labels: action (reserve, release, settle), result (ok, rejected)
	reservations *prometheus.CounterVec
	// Labels: kind (sales, payouts, low_stock)
	notifications *prometheus.CounterVec

	sessions prometheus.Gauge
	listings prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_transactions_total",
				Help: "Completed and rejected exchanges by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		reservations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_reservations_total",
				Help: "External contract reservation operations by action and result",
			},
			[]string{"action", "result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_notifications_total",
				Help: "Notification batches delivered by kind",
			},
			[]string{"kind"},
		),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bazaar_sessions",
			Help: "Connected agent sessions",
		}),
		listings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bazaar_listings",
			Help: "Registered listings",
		}),
	}
}

// ObserveTransaction implements market.EngineMetrics.
func (m *Metrics) ObserveTransaction(dir market.Direction, outcome market.Outcome) {
	m.transactions.WithLabelValues(string(dir), string(outcome)).Inc()
}

func (m *Metrics) ObserveReservation(action string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.reservations.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveNotification(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetSessions(n int) { m.sessions.Set(float64(n)) }
func (m *Metrics) SetListings(n int) { m.listings.Set(float64(n)) }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
