// Package metrics exposes Prometheus collectors for the checkers, the
// watchdog and the service runner on a private registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamrec/internal/checker"
)

type Metrics struct {
	reg *prometheus.Registry

	checksTotal      *prometheus.CounterVec
	checkSeconds     *prometheus.HistogramVec
	workerExitsTotal *prometheus.CounterVec
	liveEventsTotal  *prometheus.CounterVec
	watchTotal       *prometheus.CounterVec
	taskExitsTotal   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		checksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrec_checks_total",
			Help: "Liveness checks, labeled by plugin and result (live, offline, transient, failed).",
		}, []string{"plugin", "result"}),
		checkSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamrec_check_duration_seconds",
			Help:    "Liveness check latency, labeled by plugin.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"plugin"}),
		workerExitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrec_checker_exits_total",
			Help: "Checker worker exits, labeled by plugin and reason (clean, error).",
		}, []string{"plugin", "reason"}),
		liveEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrec_live_events_total",
			Help: "Not-live to live transitions, labeled by plugin.",
		}, []string{"plugin"}),
		watchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrec_watch_checks_total",
			Help: "Watchdog source inspections, labeled by result (unchanged, changed, error).",
		}, []string{"result"}),
		taskExitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrec_service_task_exits_total",
			Help: "Service task exits, labeled by task and reason (clean, error).",
		}, []string{"task", "reason"}),
	}
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// CheckDone implements checker.Observer.
func (m *Metrics) CheckDone(plugin string, live bool, err error, took time.Duration) {
	result := "offline"
	switch {
	case err != nil && errors.Is(err, checker.ErrTransient):
		result = "transient"
	case err != nil:
		result = "failed"
	case live:
		result = "live"
	}
	m.checksTotal.WithLabelValues(plugin, result).Inc()
	m.checkSeconds.WithLabelValues(plugin).Observe(took.Seconds())
}

// WorkerExited implements checker.Observer.
func (m *Metrics) WorkerExited(plugin string, err error) {
	m.workerExitsTotal.WithLabelValues(plugin, reason(err)).Inc()
}

func (m *Metrics) LiveEvent(plugin string) {
	m.liveEventsTotal.WithLabelValues(plugin).Inc()
}

// WatchObserved matches reload.Observer.
func (m *Metrics) WatchObserved(_ string, changed bool, err error) {
	result := "unchanged"
	switch {
	case err != nil:
		result = "error"
	case changed:
		result = "changed"
	}
	m.watchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TaskExited(task string, err error) {
	m.taskExitsTotal.WithLabelValues(task, reason(err)).Inc()
}

func reason(err error) string {
	if err != nil {
		return "error"
	}
	return "clean"
}
