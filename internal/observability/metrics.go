package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exchange outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeNoReply        = "no_reply"
	OutcomeMalformed      = "malformed"
	OutcomeTransportError = "transport_error"
)

var (
	registerOnce sync.Once

	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motorctl",
			Subsystem: "session",
			Name:      "exchanges_total",
			Help:      "Request/response exchanges by loop and outcome.",
		},
		[]string{"addr", "loop", "outcome"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motorctl",
			Subsystem: "session",
			Name:      "exchange_duration_seconds",
			Help:      "Exchange round trip in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"addr", "loop"},
	)
	safeStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motorctl",
			Subsystem: "session",
			Name:      "safe_stops_total",
			Help:      "Safe-stop exchanges by phase and success.",
		},
		[]string{"addr", "phase", "success"},
	)
	velocity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "motorctl",
			Subsystem: "telemetry",
			Name:      "velocity_rps",
			Help:      "Last reported actuator velocity.",
		},
		[]string{"addr"},
	)
	gainTerm = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "motorctl",
			Subsystem: "telemetry",
			Name:      "gain_term",
			Help:      "Last reported gain term after sign correction.",
		},
		[]string{"addr"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(exchanges, exchangeDuration, safeStops, velocity, gainTerm)
	})
}

func RecordExchange(addr, loop, outcome string, duration time.Duration) {
	RegisterMetrics()
	exchanges.WithLabelValues(addr, loop, outcome).Inc()
	exchangeDuration.WithLabelValues(addr, loop).Observe(duration.Seconds())
}

func RecordSafeStop(addr, phase string, success bool) {
	RegisterMetrics()
	label := "false"
	if success {
		label = "true"
	}
	safeStops.WithLabelValues(addr, phase, label).Inc()
}

func RecordTelemetry(addr string, velocityRPS, gain float64) {
	RegisterMetrics()
	velocity.WithLabelValues(addr).Set(velocityRPS)
	gainTerm.WithLabelValues(addr).Set(gain)
}
