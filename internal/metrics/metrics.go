package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like
// without tripping duplicate registration on the default one.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	maintenanceCreated *prometheus.CounterVec
	incidentsReported  *prometheus.CounterVec
	spillKitChecks     *prometheus.CounterVec
	offlineReplay      *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		maintenanceCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maintenance_records_created_total",
				Help: "Maintenance records created, by trigger type",
			},
			[]string{"trigger"},
		),
		incidentsReported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spill_incidents_reported_total",
				Help: "Spill incident reports created, by severity",
			},
			[]string{"severity"},
		),
		spillKitChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spill_kit_checks_total",
				Help: "Spill kit inspections recorded",
			},
			[]string{"compliant"},
		),
		offlineReplay: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offline_replay_total",
				Help: "Offline queue replay attempts by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Read cache lookups by scope and result",
			},
			[]string{"scope", "result"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_invalidations_total",
				Help: "Read cache scope invalidations caused by mutations",
			},
			[]string{"scope"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.maintenanceCreated,
		m.incidentsReported,
		m.spillKitChecks,
		m.offlineReplay,
		m.cacheLookups,
		m.cacheInvalidations,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// All recorders below accept a nil receiver so callers can run without metrics.

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) MaintenanceCreated(trigger string) {
	if m == nil {
		return
	}
	m.maintenanceCreated.WithLabelValues(trigger).Inc()
}

func (m *Metrics) IncidentReported(severity string) {
	if m == nil {
		return
	}
	m.incidentsReported.WithLabelValues(severity).Inc()
}

func (m *Metrics) SpillKitCheck(compliant bool) {
	if m == nil {
		return
	}
	m.spillKitChecks.WithLabelValues(strconv.FormatBool(compliant)).Inc()
}

func (m *Metrics) OfflineReplay(outcome string) {
	if m == nil {
		return
	}
	m.offlineReplay.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheLookup(scope string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(scope, result).Inc()
}

func (m *Metrics) CacheInvalidated(scope string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(scope).Inc()
}
