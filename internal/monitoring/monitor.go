package monitoring

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

const (
	DefaultFlushInterval = 30 * time.Second
	DefaultMaxBatch      = 50
)

var ErrInvalidLevel = errors.New("level must be one of error, warning, info")

// Event is an error, warning or info report as received from a client or
// raised by the server itself.
type Event struct {
	Level      Level                  `json:"level" binding:"required"`
	Name       string                 `json:"name" binding:"required,max=200"`
	Message    string                 `json:"message" binding:"max=4000"`
	Stack      string                 `json:"stack,omitempty" binding:"max=16000"`
	Source     string                 `json:"source,omitempty"`
	URL        string                 `json:"url,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	OccurredAt time.Time              `json:"occurred_at,omitempty"`
}

type Metric struct {
	Name       string            `json:"name" binding:"required,max=200"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	RecordedAt time.Time         `json:"recorded_at,omitempty"`
}

// Result tells the caller what happened to a captured event.
type Result struct {
	Accepted bool     `json:"accepted"`
	Flushed  bool     `json:"flushed"`
	Category Category `json:"category,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

type Options struct {
	FlushInterval time.Duration
	MaxBatch      int
	RateLimit     int
	RateWindow    time.Duration
}

// Monitor queues events and metrics and delivers them to its sinks in
// batches.
type Monitor struct {
	sinks   []Sink
	limiter *RateLimiter
	logger  *logger.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time

	mu       sync.Mutex
	events   []model.MonitoringEvent
	perf     []model.PerformanceMetric
	flushMu  sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(opts Options, sinks []Sink, l *logger.Logger, m *metrics.Metrics) *Monitor {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Monitor{
		sinks:   sinks,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
		logger:  l.With("monitoring"),
		metrics: m,
		opts:    opts,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the periodic flusher until ctx is cancelled or Close is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.opts.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.flushDetached()
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if err := m.Flush(ctx); err != nil {
					m.logger.Error(err, "periodic flush failed")
				}
			}
		}
	}()
}

// Capture classifies and queues one event. Events over the rate limit are
// dropped. High and critical events, error-level messages with a critical
// keyword, and a full batch trigger an immediate flush.
func (m *Monitor) Capture(ctx context.Context, e Event) (Result, error) {
	if !e.Level.Valid() {
		return Result{}, ErrInvalidLevel
	}
	if !m.limiter.Allow(RateKey(e.Name, e.Message)) {
		m.metrics.MonitoringDrop("rate_limited")
		return Result{Accepted: false}, nil
	}

	category, severity := Classify(e.Level, e.Name, e.Message, e.Stack)
	m.metrics.MonitoringEvent(string(e.Level), string(category), string(severity))

	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = m.now().UTC()
	}
	source := e.Source
	if source == "" {
		source = "client"
	}
	ev := model.MonitoringEvent{
		Level:      string(e.Level),
		Name:       e.Name,
		Message:    e.Message,
		Stack:      e.Stack,
		Category:   string(category),
		Severity:   string(severity),
		Source:     source,
		URL:        e.URL,
		UserAgent:  e.UserAgent,
		SessionID:  e.SessionID,
		UserID:     e.UserID,
		Context:    e.Context,
		OccurredAt: occurred,
	}

	m.mu.Lock()
	m.events = append(m.events, ev)
	n := len(m.events)
	m.mu.Unlock()
	m.metrics.SetMonitoringQueue(n)

	res := Result{Accepted: true, Category: category, Severity: severity}
	immediate := severity.Urgent() || (e.Level == LevelError && IsCritical(e.Message))
	if immediate || n >= m.opts.MaxBatch {
		res.Flushed = true
		if err := m.Flush(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// CaptureError records a server side failure.
func (m *Monitor) CaptureError(ctx context.Context, name string, err error, fields map[string]interface{}) {
	if err == nil {
		return
	}
	_, cerr := m.Capture(ctx, Event{
		Level:   LevelError,
		Name:    name,
		Message: err.Error(),
		Source:  "server",
		Context: fields,
	})
	if cerr != nil {
		m.logger.Error(cerr, "failed to capture server error", "name", name)
	}
}

// RecordMetric queues a performance measurement for the next flush.
func (m *Monitor) RecordMetric(mt Metric) error {
	if strings.TrimSpace(mt.Name) == "" {
		return errors.New("metric name is required")
	}
	recorded := mt.RecordedAt
	if recorded.IsZero() {
		recorded = m.now().UTC()
	}
	m.metrics.ClientMetric(mt.Name, mt.Value)

	m.mu.Lock()
	m.perf = append(m.perf, model.PerformanceMetric{
		Name:       mt.Name,
		Value:      mt.Value,
		Unit:       mt.Unit,
		Tags:       mt.Tags,
		RecordedAt: recorded,
	})
	m.mu.Unlock()
	return nil
}

// Flush delivers everything queued so far to every sink. A batch that fails
// on a sink is not re-queued.
func (m *Monitor) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	events, perf := m.events, m.perf
	m.events, m.perf = nil, nil
	m.mu.Unlock()
	m.metrics.SetMonitoringQueue(0)

	if len(events) == 0 && len(perf) == 0 {
		return nil
	}

	var errs []error
	for _, sink := range m.sinks {
		if len(events) > 0 {
			err := sink.WriteEvents(ctx, events)
			m.metrics.MonitoringFlush(sink.Name(), err)
			if err != nil {
				m.metrics.MonitoringDrop("sink_error")
				errs = append(errs, err)
				m.logger.Error(err, "failed to write monitoring events", "sink", sink.Name(), "count", len(events))
			}
		}
		if len(perf) > 0 {
			err := sink.WriteMetrics(ctx, perf)
			if err != nil {
				errs = append(errs, err)
				m.logger.Error(err, "failed to write performance metrics", "sink", sink.Name(), "count", len(perf))
			}
		}
	}
	return errors.Join(errs...)
}

// Pending returns the number of queued events and metrics.
func (m *Monitor) Pending() (events, perf int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), len(m.perf)
}

// Close stops the flusher and delivers whatever is still queued.
func (m *Monitor) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		select {
		case <-m.done:
		case <-time.After(5 * time.Second):
			m.logger.Warn("flusher did not stop in time")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Flush(ctx)
}

func (m *Monitor) flushDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		m.logger.Error(err, "final flush failed")
	}
}
