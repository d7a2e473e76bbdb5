package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scheduler's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	Scans           prometheus.Counter
	ScanErrors      prometheus.Counter
	Outcomes        *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	Pending         prometheus.Gauge
	Generated       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoposter_scans_total",
			Help: "Completed scans for due schedules.",
		}),
		ScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoposter_scan_errors_total",
			Help: "Scans that could not read the due schedules.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoposter_schedule_outcomes_total",
			Help: "Processed schedules by outcome.",
		}, []string{"outcome"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoposter_publish_duration_seconds",
			Help:    "Time spent publishing one due schedule.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoposter_pending_schedules",
			Help: "Pending schedules after the last scan.",
		}),
		Generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoposter_generated_schedules_total",
			Help: "Schedules created by recurring generation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Scans, m.ScanErrors, m.Outcomes, m.PublishDuration, m.Pending, m.Generated)
	}
	return m
}

func (m *Metrics) scanned(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ScanErrors.Inc()
		return
	}
	m.Scans.Inc()
}

func (m *Metrics) outcome(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.PublishDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) pending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

func (m *Metrics) generated(n int) {
	if m == nil {
		return
	}
	m.Generated.Add(float64(n))
}
