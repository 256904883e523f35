// Package metrics exposes Prometheus collectors for the bid monitor.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal       *prometheus.CounterVec
	syncDurationSeconds prometheus.Histogram
	bidsFetchedTotal    *prometheus.CounterVec
	bidsSavedTotal      *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "g2b_sync_runs_total",
				Help: "Total number of sync runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		syncDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "g2b_sync_duration_seconds",
				Help:    "Duration of full sync runs.",
				Buckets: prometheus.DefBuckets,
			},
		)

		bidsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "g2b_bids_fetched_total",
				Help: "Total number of bids fetched from the source, labeled by category.",
			},
			[]string{"category"},
		)

		bidsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "g2b_bids_saved_total",
				Help: "Total number of newly persisted bids, labeled by category.",
			},
			[]string{"category"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "g2b_notifications_total",
				Help: "Total number of webhook notifications, labeled by outcome.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordSyncRun(success bool, d time.Duration) {
	if syncRunsTotal == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	syncRunsTotal.WithLabelValues(status).Inc()
	syncDurationSeconds.Observe(d.Seconds())
}

func RecordFetched(category string, n int) {
	if bidsFetchedTotal == nil {
		return
	}
	bidsFetchedTotal.WithLabelValues(category).Add(float64(n))
}

func RecordSaved(category string, n int) {
	if bidsSavedTotal == nil {
		return
	}
	bidsSavedTotal.WithLabelValues(category).Add(float64(n))
}

func RecordNotification(err error) {
	if notificationsTotal == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}
