package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Line label for requests naming a line that isn't registered.
const UnknownLine = "unknown"

// Collector methods are safe to call on a nil *Collector, so
// components can take one optionally.
type Collector struct {
	reg *prometheus.Registry

	DatasetFetches *prometheus.CounterVec // kind, result: ok|error
	CacheHits      *prometheus.CounterVec // kind
	Invalidations  *prometheus.CounterVec // line

	TripPlans    *prometheus.CounterVec // line, outcome: ok|configuration|data|business_rule
	PlanDuration prometheus.Histogram

	ActiveAlerts prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		DatasetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "andartayo_dataset_fetches_total",
			Help: "Dataset fetches from the data source.",
		}, []string{"kind", "result"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "andartayo_catalog_cache_hits_total",
			Help: "Catalog lookups served from cache.",
		}, []string{"kind"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "andartayo_catalog_invalidations_total",
			Help: "Catalog cache invalidations.",
		}, []string{"line"}),
		TripPlans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "andartayo_trip_plans_total",
			Help: "Trip plan requests by outcome.",
		}, []string{"line", "outcome"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "andartayo_plan_duration_seconds",
			Help:    "Duration of trip planning, including dataset loading.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "andartayo_active_alerts",
			Help: "Number of alerts in the current alert snapshot.",
		}),
	}

	reg.MustRegister(
		c.DatasetFetches, c.CacheHits, c.Invalidations,
		c.TripPlans, c.PlanDuration,
		c.ActiveAlerts,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) DatasetFetched(kind string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.DatasetFetches.WithLabelValues(kind, result).Inc()
}

func (c *Collector) CacheHit(kind string) {
	if c == nil {
		return
	}
	c.CacheHits.WithLabelValues(kind).Inc()
}

func (c *Collector) Invalidated(lineID string) {
	if c == nil {
		return
	}
	c.Invalidations.WithLabelValues(lineID).Inc()
}

func (c *Collector) TripPlanned(lineID, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.TripPlans.WithLabelValues(lineID, outcome).Inc()
	c.PlanDuration.Observe(took.Seconds())
}

func (c *Collector) AlertsLoaded(n int) {
	if c == nil {
		return
	}
	c.ActiveAlerts.Set(float64(n))
}
