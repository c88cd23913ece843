// Package metrics exposes Prometheus counters for the live data channel and
// the notification pipeline. Collectors are registered once on first use.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "kebun_"

var (
	registerOnce sync.Once

	readingsTotal      *prometheus.CounterVec
	framesDiscarded    *prometheus.CounterVec
	transportState     *prometheus.GaugeVec
	pushConnects       *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
)

// States the transport gauge knows about.
var knownStates = []string{"idle", "connecting_push", "push_active", "polling_active", "stopped"}

func ensure() {
	registerOnce.Do(func() {
		readingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Sensor readings delivered to the consumer by transport",
			},
			[]string{"transport"},
		)
		framesDiscarded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "frames_discarded_total",
				Help: "Inbound payloads that failed to parse",
			},
			[]string{"transport"},
		)
		transportState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "transport_state",
				Help: "1 for the live channel's current state, 0 otherwise",
			},
			[]string{"state"},
		)
		pushConnects = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_connect_attempts_total",
				Help: "Push transport connection attempts by result",
			},
			[]string{"result"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notification candidates by category and outcome",
			},
			[]string{"category", "outcome"},
		)

		prometheus.MustRegister(
			readingsTotal,
			framesDiscarded,
			transportState,
			pushConnects,
			notificationsTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	ensure()
	return promhttp.Handler()
}

func ReadingDelivered(transport string) {
	ensure()
	readingsTotal.WithLabelValues(transport).Inc()
}

func FrameDiscarded(transport string) {
	ensure()
	framesDiscarded.WithLabelValues(transport).Inc()
}

func PushConnect(ok bool) {
	ensure()
	result := "error"
	if ok {
		result = "success"
	}
	pushConnects.WithLabelValues(result).Inc()
}

// TransportState marks state as current.
func TransportState(state string) {
	ensure()
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		transportState.WithLabelValues(s).Set(v)
	}
}

func NotificationEmitted(category string) {
	ensure()
	notificationsTotal.WithLabelValues(category, "emitted").Inc()
}

func NotificationSuppressed(category string) {
	ensure()
	notificationsTotal.WithLabelValues(category, "suppressed").Inc()
}

func NotificationFailed(category string) {
	ensure()
	notificationsTotal.WithLabelValues(category, "failed").Inc()
}
