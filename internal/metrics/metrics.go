package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the engine's Prometheus collectors. The per-platform
// consecutive-failure gauge is the operator-facing failing-source indicator.
type Registry struct {
	reg *prometheus.Registry

	ObservationsAppended prometheus.Counter
	PollFailures         *prometheus.CounterVec
	ConsecutiveFailures  *prometheus.GaugeVec
	CycleDurationSec     prometheus.Histogram
	EventsEmitted        *prometheus.CounterVec
	ListsGenerated       prometheus.Counter
	NotifyDeliveryErrors prometheus.Counter
}

// NewRegistry builds and registers all engine collectors.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_observations_appended_total"})
	pollFailures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pricewatch_poll_failures_total"}, []string{"platform", "kind"})
	consecutive := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "pricewatch_platform_consecutive_failed_cycles"}, []string{"platform"})
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricewatch_cycle_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pricewatch_events_emitted_total"}, []string{"type"})
	lists := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_shopping_lists_generated_total"})
	notifyErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_notify_delivery_errors_total"})

	r.MustRegister(appended, pollFailures, consecutive, cycleDuration, events, lists, notifyErrors)
	return &Registry{
		reg:                  r,
		ObservationsAppended: appended,
		PollFailures:         pollFailures,
		ConsecutiveFailures:  consecutive,
		CycleDurationSec:     cycleDuration,
		EventsEmitted:        events,
		ListsGenerated:       lists,
		NotifyDeliveryErrors: notifyErrors,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
