// Package metrics exposes Prometheus instrumentation for the solver's
// internal subsystems: LP solves, TSP cache traffic, tabu rejections, and
// MIP incumbents, adapted from the teacher repo's shared metrics package.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide instrumentation container.
type Metrics struct {
	LpCallsTotal *prometheus.CounterVec
	LpDuration   prometheus.Histogram

	TspCacheLookupsTotal *prometheus.CounterVec
	TspRepairDuration    prometheus.Histogram

	TabuRejectionsTotal prometheus.Counter

	MipIncumbentsTotal *prometheus.CounterVec
	MipSolveDuration   *prometheus.HistogramVec

	BestCost      *prometheus.GaugeVec
	ActiveWorkers prometheus.Gauge

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics builds and registers a fresh Metrics container.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		LpCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lp_calls_total",
				Help:      "Total number of QuantityLp solves, by outcome",
			},
			[]string{"outcome"}, // feasible | infeasible
		),
		LpDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lp_solve_duration_seconds",
				Help:      "Duration of QuantityLp solves",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),

		TspCacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tsp_cache_lookups_total",
				Help:      "Total number of TspCache lookups, by outcome",
			},
			[]string{"outcome"}, // hit | miss
		),
		TspRepairDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tsp_repair_duration_seconds",
				Help:      "Duration of TspRepair calls that miss the cache",
				Buckets:   []float64{.0001, .001, .01, .1, .5, 1, 5, 30},
			},
		),

		TabuRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tabu_rejections_total",
				Help:      "Total number of neighborhood candidates pruned as tabu",
			},
		),

		MipIncumbentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mip_incumbents_total",
				Help:      "Total number of accepted MIP incumbents, by phase",
			},
			[]string{"phase"}, // initial | window3 | window2
		),
		MipSolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mip_solve_duration_seconds",
				Help:      "Duration of MipWindowSolver invocations, by phase",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"phase"},
		),

		BestCost: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "best_cost",
				Help:      "Current best total cost found, by worker",
			},
			[]string{"worker"},
		),

		ActiveWorkers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_workers",
				Help:      "Number of search workers currently executing the SearchController state machine",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "run_info",
				Help:      "Static information about the current solver run",
			},
			[]string{"version", "run_id"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the process-wide Metrics, lazily initializing it with
// defaults if no caller has called InitMetrics yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("irpsolver", "")
	}
	return defaultMetrics
}

// RecordLpSolve records the outcome and duration of one QuantityLp solve.
func (m *Metrics) RecordLpSolve(feasible bool, duration time.Duration) {
	outcome := "infeasible"
	if feasible {
		outcome = "feasible"
	}
	m.LpCallsTotal.WithLabelValues(outcome).Inc()
	m.LpDuration.Observe(duration.Seconds())
}

// RecordTspCacheLookup records a cache hit or miss, and (on a miss) the
// backend solve duration that produced the freshly cached tour.
func (m *Metrics) RecordTspCacheLookup(hit bool, solveDuration time.Duration) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.TspCacheLookupsTotal.WithLabelValues(outcome).Inc()
	if !hit {
		m.TspRepairDuration.Observe(solveDuration.Seconds())
	}
}

// RecordTabuRejection increments the tabu-pruned candidate counter.
func (m *Metrics) RecordTabuRejection() {
	m.TabuRejectionsTotal.Inc()
}

// RecordMipIncumbent records one accepted incumbent from a MipWindowSolver
// phase and the wall-clock duration of the call that produced it.
func (m *Metrics) RecordMipIncumbent(phase string, duration time.Duration) {
	m.MipIncumbentsTotal.WithLabelValues(phase).Inc()
	m.MipSolveDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// SetBestCost publishes the current best total cost for a worker.
func (m *Metrics) SetBestCost(worker string, cost float64) {
	m.BestCost.WithLabelValues(worker).Set(cost)
}

// WorkerStarted/WorkerStopped track how many of Options.Jobs workers are
// currently executing the SearchController state machine.
func (m *Metrics) WorkerStarted() { m.ActiveWorkers.Inc() }
func (m *Metrics) WorkerStopped() { m.ActiveWorkers.Dec() }

// SetRunInfo publishes static run metadata as a constant gauge.
func (m *Metrics) SetRunInfo(version, runID string) {
	m.ServiceInfo.WithLabelValues(version, runID).Set(1)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer runs a blocking HTTP server exposing /metrics and /health.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
