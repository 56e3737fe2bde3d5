package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the agent's prometheus instrumentation. It satisfies the
// observer interfaces of the worker, rebalancer and agent so those packages
// stay free of prometheus imports.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	rebalanceAtt *prometheus.CounterVec
	stuckTotal   *prometheus.CounterVec
	candidates   prometheus.Gauge
	drawdown     prometheus.Gauge
	cacheHits    prometheus.Gauge
}

// NewMetrics builds a registry with the agent's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "degenrun",
			Name:      "jobs_total",
			Help:      "Finished jobs by type and result.",
		}, []string{"type", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "degenrun",
			Name:      "job_duration_seconds",
			Help:      "Job execution time by type.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"type"}),
		rebalanceAtt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "degenrun",
			Name:      "rebalance_attempts_total",
			Help:      "Close/open attempts by pool.",
		}, []string{"pool"}),
		stuckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "degenrun",
			Name:      "rebalance_stuck_total",
			Help:      "Positions that exhausted the rebalance retry budget.",
		}, []string{"pool"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "degenrun",
			Name:      "scoring_candidates",
			Help:      "Candidates surviving the filter in the last cycle.",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "degenrun",
			Name:      "portfolio_drawdown",
			Help:      "Fractional drawdown from the high-water mark.",
		}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "degenrun",
			Name:      "market_cache_hit_ratio",
			Help:      "Market-data cache hit ratio since start.",
		}),
	}

	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.rebalanceAtt,
		m.stuckTotal, m.candidates, m.drawdown, m.cacheHits)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// JobFinished implements the worker observer.
func (m *Metrics) JobFinished(jobType string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.jobsTotal.WithLabelValues(jobType, result).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RebalanceAttempt implements the rebalancer observer.
func (m *Metrics) RebalanceAttempt(pool string) {
	m.rebalanceAtt.WithLabelValues(pool).Inc()
}

// RebalanceStuck implements the rebalancer observer.
func (m *Metrics) RebalanceStuck(pool string) {
	m.stuckTotal.WithLabelValues(pool).Inc()
}

// CandidatesScored implements the agent observer.
func (m *Metrics) CandidatesScored(count int) {
	m.candidates.Set(float64(count))
}

// DrawdownUpdated implements the agent observer.
func (m *Metrics) DrawdownUpdated(dd float64) {
	m.drawdown.Set(dd)
}

// CacheHitRatio records the market-data cache hit ratio.
func (m *Metrics) CacheHitRatio(ratio float64) {
	m.cacheHits.Set(ratio)
}
