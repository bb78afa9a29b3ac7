// Package metrics exposes prometheus collectors for the watch daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghrenew",
		Name:      "runs_total",
		Help:      "Renewal runs by outcome.",
	}, []string{"outcome"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ghrenew",
		Name:      "run_duration_seconds",
		Help:      "Duration of renewal runs in seconds.",
		Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
	})

	remainingHours = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ghrenew",
		Name:      "remaining_hours",
		Help:      "Entitlement hours left after the last run.",
	}, []string{"server_id"})

	lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ghrenew",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})

	skippedRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghrenew",
		Name:      "skipped_runs_total",
		Help:      "Scheduled runs skipped because the previous one was still going or the lock was held.",
	})
)

func init() {
	prometheus.MustRegister(runsTotal, runDuration, remainingHours, lastRunTimestamp, skippedRuns)
}

// ObserveRun records a finished run.
func ObserveRun(outcome, serverID string, hours int, d time.Duration, finished time.Time) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(d.Seconds())
	if serverID != "" {
		remainingHours.WithLabelValues(serverID).Set(float64(hours))
	}
	lastRunTimestamp.Set(float64(finished.Unix()))
}

func SkippedRun() {
	skippedRuns.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
