// Package metrics holds the prometheus collectors the daemon exports on
// /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billy"

var (
	PlayerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "player_events_total",
		Help:      "Normalized player events by type and back-end.",
	}, []string{"type", "kind"})

	TracksPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracks_played_total",
		Help:      "Tracks that started playing, by back-end.",
	}, []string{"kind"})

	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_requests_total",
		Help:      "Requests to the Billy server by method and status.",
	}, []string{"method", "status"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_seconds",
		Help:      "Latency of requests to the Billy server.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Alerts raised for the user, by level.",
	}, []string{"level"})

	Playlists = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playlists",
		Help:      "Playlists in the local collection.",
	})

	ImportedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "imported_files_total",
		Help:      "Files picked up from the import directory, by outcome.",
	}, []string{"outcome"})
)

// StatusLabel renders an HTTP status for RemoteRequests; 0 means the request
// never got a response.
func StatusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
