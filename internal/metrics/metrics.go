package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghupdater_query_total",
		Help: "Release and asset queries by result",
	}, []string{"op", "result"})
	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghupdater_jobs_total",
		Help: "Finished download jobs by outcome",
	}, []string{"outcome"})
	DownloadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghupdater_downloaded_bytes_total",
		Help: "Bytes received from asset downloads",
	})
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghupdater_job_duration_seconds",
		Help:    "Time from job start to terminal outcome",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		JobsTotal,
		DownloadedBytes,
		JobDuration,
	)
}

// NewServer returns an HTTP server exposing /metrics on addr
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
