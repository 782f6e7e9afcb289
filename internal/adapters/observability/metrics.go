package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "shop"

var (
	HTTPRequests     = counterVec("http_requests_total", "HTTP requests.", "route", "method", "status")
	HTTPLatency      = histogramVec("http_request_duration_seconds", "HTTP request duration seconds.", "route", "method")
	ExternalRequests = counterVec("external_requests_total", "Outbound requests; status 0 is a transport error.", "service", "status")
	ExternalLatency  = histogramVec("external_request_duration_seconds", "Outbound request duration seconds.", "service")
	CacheEvents      = counterVec("cache_events_total", "Cache events by kind.", "cache", "event")
	StoreOps         = counterVec("store_operations_total", "Store session operations by outcome.", "op", "outcome")
	StoreLatency     = histogramVec("store_operation_duration_seconds", "Store session operation duration seconds.", "op")
)

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: prometheus.DefBuckets,
	}, labels)
}

// InitRegistry returns a fresh registry with the service collectors plus the
// Go runtime and process collectors.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests, HTTPLatency,
		ExternalRequests, ExternalLatency,
		CacheEvents,
		StoreOps, StoreLatency,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve exposes reg on a separate listener. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveStore(op, outcome string, dur time.Duration) {
	StoreOps.WithLabelValues(op, outcome).Inc()
	StoreLatency.WithLabelValues(op).Observe(dur.Seconds())
}
