package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	remindersDispatched prometheus.Counter
	remindersSkipped    prometheus.Counter
	remindersAcked      prometheus.Counter
	channelDeliveries   *prometheus.CounterVec
	schedulerArmed      prometheus.Gauge
	markersPruned       prometheus.Counter

	settingsSaves   *prometheus.CounterVec
	settingsSkipped prometheus.Counter

	bootstrapRuns *prometheus.CounterVec

	remoteRequests *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		remindersDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skysense_reminders_dispatched_total",
			Help: "Medication reminder occurrences dispatched",
		}),
		remindersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skysense_reminders_skipped_total",
			Help: "Due reminders skipped because a dispatch marker existed",
		}),
		remindersAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skysense_reminders_acknowledged_total",
			Help: "Reminders marked as taken",
		}),
		channelDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skysense_reminder_channel_deliveries_total",
			Help: "Reminder deliveries per channel and result",
		}, []string{"channel", "result"}),
		schedulerArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skysense_reminder_scheduler_armed",
			Help: "1 while the minute tick is armed",
		}),
		markersPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skysense_reminder_markers_pruned_total",
			Help: "Expired dispatch markers removed",
		}),
		settingsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skysense_settings_saves_total",
			Help: "Debounced remote settings saves by result",
		}, []string{"result"}),
		settingsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skysense_settings_saves_skipped_total",
			Help: "Debounced saves skipped for lack of a profile id",
		}),
		bootstrapRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skysense_bootstrap_runs_total",
			Help: "Bootstrap outcomes by startup mode",
		}, []string{"mode"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skysense_remote_requests_total",
			Help: "Remote profile service calls by operation and result",
		}, []string{"op", "result"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skysense_remote_request_seconds",
			Help:    "Remote profile service call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.remindersDispatched,
		m.remindersSkipped,
		m.remindersAcked,
		m.channelDeliveries,
		m.schedulerArmed,
		m.markersPruned,
		m.settingsSaves,
		m.settingsSkipped,
		m.bootstrapRuns,
		m.remoteRequests,
		m.remoteLatency,
	)
	return m
}

func (m *Metrics) RecordDispatch() {
	m.remindersDispatched.Inc()
}

func (m *Metrics) RecordSkip() {
	m.remindersSkipped.Inc()
}

func (m *Metrics) RecordAck() {
	m.remindersAcked.Inc()
}

func (m *Metrics) RecordChannel(channel string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.channelDeliveries.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) SetSchedulerArmed(armed bool) {
	if armed {
		m.schedulerArmed.Set(1)
		return
	}
	m.schedulerArmed.Set(0)
}

func (m *Metrics) RecordMarkersPruned(n int) {
	m.markersPruned.Add(float64(n))
}

func (m *Metrics) RecordSettingsSave(success bool) {
	if success {
		m.settingsSaves.WithLabelValues("success").Inc()
		return
	}
	m.settingsSaves.WithLabelValues("failed").Inc()
}

func (m *Metrics) RecordSettingsSkipped() {
	m.settingsSkipped.Inc()
}

func (m *Metrics) RecordBootstrap(mode string) {
	m.bootstrapRuns.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordRemote(op string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.remoteRequests.WithLabelValues(op, result).Inc()
	m.remoteLatency.WithLabelValues(op).Observe(d.Seconds())
}

// Registry exposes the underlying registry for tests and custom exporters
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func RecordDispatch() {
	Default().RecordDispatch()
}

func RecordSkip() {
	Default().RecordSkip()
}

func RecordRemote(op string, err error, d time.Duration) {
	Default().RecordRemote(op, err, d)
}

func Handler() http.Handler {
	return Default().Handler()
}
