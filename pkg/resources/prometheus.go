package resources

import (
	"errors"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// PrometheusHandler serves the default registry.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHandler records request counts, latencies and in-flight requests
// of handler under the given name.
func InstrumentHandler(name string, handler http.Handler) http.Handler {
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "tzevents",
		Name:        "requests_in_flight",
		Help:        "Number of requests currently being served by the handler.",
		ConstLabels: prometheus.Labels{"handler": name},
	})
	inFlight = register(inFlight)
	handler = promhttp.InstrumentHandlerInFlight(inFlight, handler)

	counter := register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "tzevents",
		Name:        "requests_total",
		Help:        "Total number of requests for the handler.",
		ConstLabels: prometheus.Labels{"handler": name},
	}, []string{"code", "method"}))
	handler = promhttp.InstrumentHandlerCounter(counter, handler)

	duration := register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "tzevents",
		Name:        "response_duration_seconds",
		Help:        "A histogram of request latencies.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"handler": name},
	}, []string{}))
	handler = promhttp.InstrumentHandlerDuration(duration, handler)

	return handler
}

// LogHandler logs every request served by handler, for plain net/http muxes
// outside gin.
func LogHandler(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics := httpsnoop.CaptureMetrics(handler, w, r)

		log.Ctx(r.Context()).Debug().
			Str("component", name).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", metrics.Code).
			Int64("size", metrics.Written).
			Dur("duration", metrics.Duration).
			Msg("handled")
	})
}

// register tolerates a collector registered twice under the same name,
// returning the one already in the registry.
func register[C prometheus.Collector](c C) C {
	err := prometheus.Register(c)
	if err == nil {
		return c
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}

	panic(err)
}
