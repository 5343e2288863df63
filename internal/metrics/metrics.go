// Package metrics holds the Prometheus collectors of the map core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mapkit"

var (
	// Native engine metrics
	EngineCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "calls_total",
		Help:      "Native engine operations issued",
	}, []string{"op"})

	EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "errors_total",
		Help:      "Native engine operations that failed",
	}, []string{"op"})

	// Scene lifecycle metrics
	SceneLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scene",
		Name:      "loads_total",
		Help:      "Scene ready transitions by result",
	}, []string{"result"})

	SceneCallbacksSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scene",
		Name:      "callbacks_suppressed_total",
		Help:      "Scene ready callbacks dropped because a newer request was issued",
	})

	MarkersRemapped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scene",
		Name:      "markers_remapped_total",
		Help:      "Markers re-added after a scene reload",
	})

	SceneLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scene",
		Name:      "load_duration_seconds",
		Help:      "Time from scene request to ready callback",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// Pick metrics
	Picks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pick",
		Name:      "picks_total",
		Help:      "Pick requests by channel and result",
	}, []string{"channel", "result"})

	// Annotation metrics
	AnnotationsBound = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "annotation",
		Name:      "bound",
		Help:      "Annotations currently bound to a map",
	}, []string{"kind"})
)

// ObserveEngine counts one native call and its failure, if any.
func ObserveEngine(op string, err error) {
	EngineCalls.WithLabelValues(op).Inc()
	if err != nil {
		EngineErrors.WithLabelValues(op).Inc()
	}
}

// ObservePick counts a pick on channel ("marker" or "feature").
func ObservePick(channel string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	Picks.WithLabelValues(channel, result).Inc()
}

// ObserveScene records a scene ready transition.
func ObserveScene(ok bool, since time.Time) {
	result := "ok"
	if !ok {
		result = "error"
	}
	SceneLoads.WithLabelValues(result).Inc()
	if !since.IsZero() {
		SceneLoadDuration.Observe(time.Since(since).Seconds())
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
