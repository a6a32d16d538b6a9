package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results for the scheduler loop.
const (
	CycleRan       = "ran"
	CycleLockHeld  = "lock_held"
	CycleLockError = "lock_error"
)

// CronJobMetrics records scheduler cycles and per-job outcomes.
type CronJobMetrics struct {
	cycles      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rows        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_cron_cycles_total",
			Help: "Scheduler ticks by whether this instance won the lock.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_job_runs_total",
			Help: "Cron job executions by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_job_duration_seconds",
			Help:    "Duration of cron jobs in seconds.",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_job_rows_affected_total",
			Help: "Rows changed by cron jobs.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.cycles, m.runs, m.duration, m.rows, m.lastSuccess)
	return m
}

// ObserveCycle counts one scheduler tick.
func (c *CronJobMetrics) ObserveCycle(result string) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
}

// ObserveRun records a finished job run. A nil err counts as success and
// moves the last-success timestamp to finishedAt.
func (c *CronJobMetrics) ObserveRun(job string, rows int64, elapsed time.Duration, finishedAt time.Time, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if rows > 0 {
		c.rows.WithLabelValues(job).Add(float64(rows))
	}
	if err != nil {
		c.runs.WithLabelValues(job, "error").Inc()
		return
	}
	c.runs.WithLabelValues(job, "ok").Inc()
	c.lastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
