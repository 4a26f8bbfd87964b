package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/telehealth-admin/internal/email"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/pkg/circuitbreaker"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

// Sink receives flushed batches.
type Sink interface {
	Name() string
	WriteEvents(ctx context.Context, events []model.MonitoringEvent) error
	WriteMetrics(ctx context.Context, metrics []model.PerformanceMetric) error
}

// StoreSink persists batches through the repository.
type StoreSink struct {
	events  repository.Creator[model.MonitoringEvent]
	metrics repository.Creator[model.PerformanceMetric]
}

func NewStoreSink(events repository.Creator[model.MonitoringEvent], metrics repository.Creator[model.PerformanceMetric]) *StoreSink {
	return &StoreSink{events: events, metrics: metrics}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) WriteEvents(ctx context.Context, events []model.MonitoringEvent) error {
	var errs []error
	for i := range events {
		if _, err := s.events.Create(ctx, &events[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *StoreSink) WriteMetrics(ctx context.Context, metrics []model.PerformanceMetric) error {
	var errs []error
	for i := range metrics {
		if _, err := s.metrics.Create(ctx, &metrics[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(l *logger.Logger) *LogSink {
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) WriteEvents(_ context.Context, events []model.MonitoringEvent) error {
	for _, e := range events {
		ev := s.logger.ZL.Info()
		switch Level(e.Level) {
		case LevelError:
			ev = s.logger.ZL.Error()
		case LevelWarning:
			ev = s.logger.ZL.Warn()
		}
		ev.Str("name", e.Name).
			Str("category", e.Category).
			Str("severity", e.Severity).
			Str("source", e.Source).
			Str("url", e.URL).
			Str("session_id", e.SessionID).
			Msg(e.Message)
	}
	return nil
}

func (s *LogSink) WriteMetrics(_ context.Context, metrics []model.PerformanceMetric) error {
	for _, m := range metrics {
		s.logger.ZL.Debug().
			Str("metric", m.Name).
			Float64("value", m.Value).
			Str("unit", m.Unit).
			Msg("performance metric")
	}
	return nil
}

// RemoteSink posts batches as JSON to an external collector. Calls go
// through a circuit breaker so an unreachable collector is skipped quickly.
type RemoteSink struct {
	endpoint string
	client   *http.Client
	cb       *circuitbreaker.CircuitBreaker
}

type remoteBatch struct {
	Events  []model.MonitoringEvent   `json:"events,omitempty"`
	Metrics []model.PerformanceMetric `json:"metrics,omitempty"`
	SentAt  time.Time                 `json:"sent_at"`
}

func NewRemoteSink(endpoint string, timeout time.Duration, l *logger.Logger) *RemoteSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "monitoring-remote",
			MaxRequests:      1,
			Timeout:          30 * time.Second,
			FailureThreshold: 3,
			OnStateChange: func(name, from, to string) {
				l.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		}),
	}
}

func (s *RemoteSink) Name() string { return "remote" }

func (s *RemoteSink) WriteEvents(ctx context.Context, events []model.MonitoringEvent) error {
	return s.post(ctx, remoteBatch{Events: events, SentAt: time.Now().UTC()})
}

func (s *RemoteSink) WriteMetrics(ctx context.Context, metrics []model.PerformanceMetric) error {
	return s.post(ctx, remoteBatch{Metrics: metrics, SentAt: time.Now().UTC()})
}

func (s *RemoteSink) post(ctx context.Context, batch remoteBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return s.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("remote collector returned status %d", resp.StatusCode)
		}
		return nil
	})
}

// AlertSink e-mails critical events. Everything else is ignored.
type AlertSink struct {
	mailer email.Service
	to     []string
}

func NewAlertSink(mailer email.Service, to []string) *AlertSink {
	return &AlertSink{mailer: mailer, to: to}
}

func (s *AlertSink) Name() string { return "alert" }

func (s *AlertSink) WriteEvents(ctx context.Context, events []model.MonitoringEvent) error {
	var critical []model.MonitoringEvent
	for _, e := range events {
		if Severity(e.Severity) == SeverityCritical {
			critical = append(critical, e)
		}
	}
	if len(critical) == 0 || len(s.to) == 0 {
		return nil
	}

	var b strings.Builder
	for _, e := range critical {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Category, e.Name, e.Message)
		if e.URL != "" {
			fmt.Fprintf(&b, "  url: %s\n", e.URL)
		}
		if e.Stack != "" {
			fmt.Fprintf(&b, "  stack: %s\n", e.Stack)
		}
	}
	subject := fmt.Sprintf("[telehealth-admin] %d critical error(s): %s", len(critical), critical[0].Name)
	return s.mailer.SendCustom(ctx, s.to, subject, b.String())
}

func (s *AlertSink) WriteMetrics(context.Context, []model.PerformanceMetric) error {
	return nil
}
