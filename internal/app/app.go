// Package app wires services, handlers and the router from configuration.
package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/channel"
	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/email"
	audithandler "github.com/jwalitptl/telehealth-admin/internal/handler/audit"
	"github.com/jwalitptl/telehealth-admin/internal/handler/conversation"
	formhandler "github.com/jwalitptl/telehealth-admin/internal/handler/form"
	"github.com/jwalitptl/telehealth-admin/internal/handler/health"
	monitoringhandler "github.com/jwalitptl/telehealth-admin/internal/handler/monitoring"
	prometheushandler "github.com/jwalitptl/telehealth-admin/internal/handler/prometheus"
	recordshandler "github.com/jwalitptl/telehealth-admin/internal/handler/records"
	submissionhandler "github.com/jwalitptl/telehealth-admin/internal/handler/submission"
	"github.com/jwalitptl/telehealth-admin/internal/middleware"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/monitoring"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/router"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	"github.com/jwalitptl/telehealth-admin/internal/service/form"
	"github.com/jwalitptl/telehealth-admin/internal/service/messaging"
	"github.com/jwalitptl/telehealth-admin/internal/service/order"
	"github.com/jwalitptl/telehealth-admin/internal/service/patient"
	"github.com/jwalitptl/telehealth-admin/internal/service/provider"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	"github.com/jwalitptl/telehealth-admin/internal/service/session"
	"github.com/jwalitptl/telehealth-admin/internal/service/submission"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	pkgmessaging "github.com/jwalitptl/telehealth-admin/pkg/messaging"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

const metricsNamespace = "telehealth"

// Services is the domain layer over one document store.
type Services struct {
	Audit       *audit.Service
	Patients    *patient.Service
	Providers   *provider.Service
	Orders      *order.Service
	Sessions    *session.Service
	Forms       *form.Service
	Submissions *submission.Service
	Messaging   *messaging.Service
}

// NewServices builds every service over store, publishing change events
// through broker.
func NewServices(store repository.DocumentStore, broker pkgmessaging.Publisher, l *logger.Logger, m *metrics.Metrics) *Services {
	auditSvc := audit.NewService(collection[model.AuditLog](store, model.CollectionAuditLogs, m), l)
	deps := records.Dependencies{
		Audit:  auditSvc,
		Events: pkgmessaging.NewEventPublisher(broker, l.With("events").ZL),
		Logger: l,
	}

	forms := form.NewService(collection[model.Form](store, model.CollectionForms, m), deps, m)
	return &Services{
		Audit:       auditSvc,
		Patients:    patient.NewService(collection[model.Patient](store, model.CollectionPatients, m), deps),
		Providers:   provider.NewService(collection[model.Provider](store, model.CollectionProviders, m), deps),
		Orders:      order.NewService(collection[model.Order](store, model.CollectionOrders, m), deps),
		Sessions:    session.NewService(collection[model.Session](store, model.CollectionSessions, m), deps),
		Forms:       forms,
		Submissions: submission.NewService(collection[model.FormSubmission](store, model.CollectionSubmissions, m), forms, deps, m),
		Messaging: messaging.NewService(
			collection[model.Conversation](store, model.CollectionConversations, m),
			collection[model.Message](store, model.CollectionMessages, m),
			deps,
		),
	}
}

func collection[T any](store repository.DocumentStore, name string, m *metrics.Metrics) *repository.Collection[T] {
	return repository.NewCollection[T](store, name, repository.WithMetrics(m))
}

// NewMonitor builds the monitor with the store and log sinks, plus the
// remote and alert sinks when configured. mailer may be nil.
func NewMonitor(cfg config.MonitoringConfig, store repository.DocumentStore, mailer email.Service, l *logger.Logger, m *metrics.Metrics) *monitoring.Monitor {
	sinks := []monitoring.Sink{
		monitoring.NewStoreSink(
			repository.NewCollection[model.MonitoringEvent](store, model.CollectionMonitoringEvents, repository.WithMetrics(m)),
			repository.NewCollection[model.PerformanceMetric](store, model.CollectionPerformanceMetrics, repository.WithMetrics(m)),
		),
		monitoring.NewLogSink(l.With("client")),
	}
	if cfg.RemoteEndpoint != "" {
		sinks = append(sinks, monitoring.NewRemoteSink(cfg.RemoteEndpoint, cfg.RemoteTimeout, l))
	}
	if mailer != nil && len(cfg.AlertTo) > 0 {
		sinks = append(sinks, monitoring.NewAlertSink(mailer, cfg.AlertTo))
	}
	return monitoring.New(monitoring.Options{
		FlushInterval: cfg.FlushInterval,
		MaxBatch:      cfg.MaxBatch,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
	}, sinks, l, m)
}

// App is a ready to serve HTTP application.
type App struct {
	Router   *router.Router
	Services *Services
	Monitor  *monitoring.Monitor
	Registry *prometheus.Registry

	store  repository.DocumentStore
	broker pkgmessaging.Broker
}

// NewMetrics returns a registry with the runtime collectors and the
// application metrics registered on it.
func NewMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.NewMetrics(reg, metricsNamespace)
}

// New assembles the application on an open store and broker. The app owns
// both from here on and closes them in Close.
func New(cfg *config.Config, store repository.DocumentStore, broker pkgmessaging.Broker, resolver auth.Resolver, l *logger.Logger, reg *prometheus.Registry, m *metrics.Metrics) *App {

	var mailer email.Service
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPService(cfg.SMTP)
	}

	svc := NewServices(store, broker, l, m)
	monitor := NewMonitor(cfg.Monitoring, store, mailer, l, m)

	eventsReader := repository.NewCollection[model.MonitoringEvent](store, model.CollectionMonitoringEvents, repository.WithMetrics(m))
	checks := map[string]health.Pinger{"store": store}
	if p, ok := broker.(health.Pinger); ok {
		checks["broker"] = p
	}

	routerCfg := router.Config{
		Mode:     cfg.Server.Mode,
		CORS:     corsConfig(cfg.Security),
		Security: middleware.DefaultSecurityConfig(),
		SizeLimit: middleware.DefaultSizeLimitConfig(),
		Timeout:   middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout},
	}
	if cfg.Server.MaxBodyBytes > 0 {
		routerCfg.SizeLimit.MaxBodySize = cfg.Server.MaxBodyBytes
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}
	}

	r := router.NewRouter(routerCfg, resolver, monitor, router.Handlers{
		Health:  health.NewHandler(checks),
		Metrics: prometheushandler.New(reg, metricsNamespace),
		Records: []router.RecordRoutes{
			recordshandler.NewHandler[model.Patient](svc.Patients, "/patients"),
			recordshandler.NewHandler[model.Provider](svc.Providers, "/providers"),
			recordshandler.NewHandler[model.Order](svc.Orders, "/orders"),
			recordshandler.NewHandler[model.Session](svc.Sessions, "/sessions"),
		},
		Forms:         formhandler.NewHandler(svc.Forms),
		Submissions:   submissionhandler.NewHandler(svc.Submissions),
		Conversations: conversation.NewHandler(svc.Messaging),
		Audit:         audithandler.NewHandler(svc.Audit),
		Monitoring:    monitoringhandler.NewHandler(monitor, eventsReader, l),
		Channels:      channel.NewHandler(broker, l, m, cfg.Security.AllowedOrigins),
	})
	r.Setup()

	return &App{
		Router:   r,
		Services: svc,
		Monitor:  monitor,
		Registry: reg,
		store:    store,
		broker:   broker,
	}
}

func corsConfig(sec config.SecurityConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(sec.AllowedOrigins) > 0 {
		c.AllowOrigins = sec.AllowedOrigins
	}
	if len(sec.AllowedMethods) > 0 {
		c.AllowMethods = sec.AllowedMethods
	}
	if len(sec.AllowedHeaders) > 0 {
		c.AllowHeaders = sec.AllowedHeaders
	}
	return c
}

// Start runs background work until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.Monitor.Start(ctx)
}

// Close flushes the monitor and releases the broker and store.
func (a *App) Close() error {
	var errs []error
	if err := a.Monitor.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.broker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
