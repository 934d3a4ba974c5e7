// Package metrics exposes Prometheus counters for the intake and
// orchestration pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchergw_events_total",
			Help: "Total number of webhook events by disposition.",
		},
		[]string{"disposition"}, // accepted, ignored, rejected
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchergw_orders_total",
			Help: "Total number of orchestrated orders by outcome.",
		},
		[]string{"outcome", "site"}, // succeeded, failed
	)

	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchergw_attempts_total",
			Help: "Total number of portal attempts by result.",
		},
		[]string{"result", "site"}, // succeeded, failed
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchergw_notifications_total",
			Help: "Total number of notification deliveries by sink and result.",
		},
		[]string{"sink", "result"}, // slack/email x sent/failed
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(eventsTotal, ordersTotal, attemptsTotal, notificationsTotal)
}

// RecordEvent counts a webhook delivery disposition.
func RecordEvent(disposition string) {
	eventsTotal.WithLabelValues(disposition).Inc()
}

// RecordOrder counts a terminal orchestration outcome.
func RecordOrder(outcome, site string) {
	ordersTotal.WithLabelValues(outcome, site).Inc()
}

// RecordAttempt counts one portal attempt result.
func RecordAttempt(result, site string) {
	attemptsTotal.WithLabelValues(result, site).Inc()
}

// RecordNotification counts a notification delivery.
func RecordNotification(sink, result string) {
	notificationsTotal.WithLabelValues(sink, result).Inc()
}

// Handler returns the /metrics HTTP handler for the service registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
