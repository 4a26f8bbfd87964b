package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. Every helper is safe on a nil
// receiver so components can run without instrumentation in tests.
type Metrics struct {
	// Document store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
	CacheRequests   *prometheus.CounterVec

	// Monitoring metrics
	MonitoringEvents  *prometheus.CounterVec
	MonitoringDropped *prometheus.CounterVec
	MonitoringFlushes *prometheus.CounterVec
	MonitoringQueue   prometheus.Gauge
	ClientMetrics     *prometheus.SummaryVec

	// Channel metrics
	ChannelMessages    *prometheus.CounterVec
	ChannelSubscribers prometheus.Gauge

	// Form metrics
	FormValidations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of document store operations",
		}, []string{"collection", "operation", "status"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of document store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Query cache lookups by result",
		}, []string{"result"}),

		MonitoringEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "events_total",
			Help:      "Captured monitoring events",
		}, []string{"level", "category", "severity"}),
		MonitoringDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "events_dropped_total",
			Help:      "Monitoring events dropped before delivery",
		}, []string{"reason"}),
		MonitoringFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "flushes_total",
			Help:      "Batch deliveries per sink",
		}, []string{"sink", "status"}),
		MonitoringQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "queue_size",
			Help:      "Events waiting for the next flush",
		}),
		ClientMetrics: f.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  namespace,
			Subsystem:  "monitoring",
			Name:       "client_metric",
			Help:       "Client reported performance measurements",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"name"}),

		ChannelMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "messages_total",
			Help:      "Channel messages by direction",
		}, []string{"direction"}),
		ChannelSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "subscribers",
			Help:      "Open websocket subscriptions",
		}),

		FormValidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "validations_total",
			Help:      "Form schema and submission validations by outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) ObserveStore(collection, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(collection, operation, status).Inc()
	m.StoreLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) MonitoringEvent(level, category, severity string) {
	if m == nil {
		return
	}
	m.MonitoringEvents.WithLabelValues(level, category, severity).Inc()
}

func (m *Metrics) MonitoringDrop(reason string) {
	if m == nil {
		return
	}
	m.MonitoringDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) MonitoringFlush(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MonitoringFlushes.WithLabelValues(sink, status).Inc()
}

func (m *Metrics) SetMonitoringQueue(n int) {
	if m == nil {
		return
	}
	m.MonitoringQueue.Set(float64(n))
}

func (m *Metrics) ClientMetric(name string, value float64) {
	if m == nil {
		return
	}
	m.ClientMetrics.WithLabelValues(name).Observe(value)
}

func (m *Metrics) ChannelMessage(direction string) {
	if m == nil {
		return
	}
	m.ChannelMessages.WithLabelValues(direction).Inc()
}

func (m *Metrics) ChannelSubscriberDelta(delta float64) {
	if m == nil {
		return
	}
	m.ChannelSubscribers.Add(delta)
}

func (m *Metrics) FormValidation(kind string, valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.FormValidations.WithLabelValues(kind, outcome).Inc()
}
