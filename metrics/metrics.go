// Package metrics exposes the sim's Prometheus instrumentation,
// grounded on the counter/gauge wiring pattern in
// kaanevranportfolio-RideSharing's shared/monitoring package. The core
// itself never reads these back; they exist purely for the debug
// server (see sim/debugserver.go) to expose over /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles every metric the core updates while running a
// simulation. One Collector is created per sim.Sim and registered into
// a private prometheus.Registry so that multiple sims in one process
// (as in package tests) don't collide on global metric names.
type Collector struct {
	Registry *prometheus.Registry

	EventsProcessed prometheus.Counter
	AlertsEmitted   *prometheus.CounterVec // labeled by message category
	ActiveCars      prometheus.Gauge
	ActivePeds      prometheus.Gauge
	TripsFinished   prometheus.Counter
	TripsCancelled  *prometheus.CounterVec // labeled by reason
	SchedulerDepth  prometheus.Gauge
	IntersectionWait prometheus.Histogram
}

// NewCollector builds and registers a fresh set of metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moss_core_events_processed_total",
			Help: "Number of scheduler events popped and executed.",
		}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moss_core_alerts_emitted_total",
			Help: "Number of Alert events emitted, by category.",
		}, []string{"category"}),
		ActiveCars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moss_core_active_cars",
			Help: "Number of cars currently in the simulation.",
		}),
		ActivePeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moss_core_active_peds",
			Help: "Number of pedestrians currently in the simulation.",
		}),
		TripsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moss_core_trips_finished_total",
			Help: "Number of trips that reached TripFinished.",
		}),
		TripsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moss_core_trips_cancelled_total",
			Help: "Number of trips cancelled, by reason.",
		}, []string{"reason"}),
		SchedulerDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moss_core_scheduler_depth",
			Help: "Number of pending commands in the scheduler.",
		}),
		IntersectionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moss_core_intersection_wait_seconds",
			Help:    "Distribution of IntersectionDelayMeasured wait times.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		c.EventsProcessed, c.AlertsEmitted, c.ActiveCars, c.ActivePeds,
		c.TripsFinished, c.TripsCancelled, c.SchedulerDepth, c.IntersectionWait,
	)
	return c
}
