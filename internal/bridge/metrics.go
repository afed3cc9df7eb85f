package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Published = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "bridge",
		Name:      "published_total",
		Help:      "trajectory messages written to rosbridge",
	})
	Throttled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "bridge",
		Name:      "throttled_total",
		Help:      "publishes dropped by the rate limiter",
	})
	Failures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shm",
		Subsystem: "bridge",
		Name:      "failures_total",
		Help:      "publishes that failed or were refused by the open breaker",
	})
	BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shm",
		Subsystem: "bridge",
		Name:      "breaker_state",
		Help:      "0 closed, 1 half-open, 2 open",
	})
)

func init() {
	prometheus.MustRegister(Published)
	prometheus.MustRegister(Throttled)
	prometheus.MustRegister(Failures)
	prometheus.MustRegister(BreakerState)
}
