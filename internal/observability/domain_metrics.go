package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Translate outcomes, one per ask interaction.
const (
	TranslateAccepted = "accepted"
	TranslateRejected = "rejected"
	TranslateFailed   = "failed"
)

var (
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_translate_requests_total",
			Help: "Natural-language translation attempts by outcome (accepted, rejected, failed).",
		},
		[]string{"outcome"},
	)
	uploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_uploads_total",
			Help: "Total number of accepted dataset uploads.",
		},
	)
	uploadRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_upload_rows_total",
			Help: "Total number of rows loaded from dataset uploads.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_query_duration_seconds",
			Help:    "Execution latency of validated statements.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabletalk_active_sessions",
			Help: "Current number of live sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		translateRequestsTotal,
		uploadsTotal,
		uploadRowsTotal,
		queryDurationSeconds,
		activeSessions,
	)
}

func ObserveTranslate(outcome string) {
	translateRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveUpload(rows int) {
	uploadsTotal.Inc()
	if rows > 0 {
		uploadRowsTotal.Add(float64(rows))
	}
}

func ObserveQueryDuration(elapsed time.Duration) {
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
