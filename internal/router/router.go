package router

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/channel"
	"github.com/jwalitptl/telehealth-admin/internal/handler/audit"
	"github.com/jwalitptl/telehealth-admin/internal/handler/conversation"
	"github.com/jwalitptl/telehealth-admin/internal/handler/form"
	"github.com/jwalitptl/telehealth-admin/internal/handler/health"
	"github.com/jwalitptl/telehealth-admin/internal/handler/monitoring"
	"github.com/jwalitptl/telehealth-admin/internal/handler/prometheus"
	"github.com/jwalitptl/telehealth-admin/internal/handler/submission"
	"github.com/jwalitptl/telehealth-admin/internal/middleware"
)

const (
	APIPrefix     = "/api/v1"
	subscribePath = APIPrefix + "/channels/:channel/subscribe"
)

// RecordRoutes is a CRUD handler for one collection.
type RecordRoutes interface {
	RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc)
}

type Config struct {
	Mode      string
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	SizeLimit middleware.SizeLimitConfig
	Timeout   middleware.TimeoutConfig
	// RateLimit is off when nil.
	RateLimit *middleware.RateLimiterConfig
}

type Handlers struct {
	Health        *health.Handler
	Metrics       *prometheus.Handler
	Records       []RecordRoutes
	Forms         *form.Handler
	Submissions   *submission.Handler
	Conversations *conversation.Handler
	Audit         *audit.Handler
	Monitoring    *monitoring.Handler
	Channels      *channel.Handler
}

type Router struct {
	engine   *gin.Engine
	config   Config
	resolver auth.Resolver
	reporter middleware.ErrorReporter
	h        Handlers
}

func NewRouter(config Config, resolver auth.Resolver, reporter middleware.ErrorReporter, h Handlers) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	r := &Router{
		engine:   engine,
		config:   config,
		resolver: resolver,
		reporter: reporter,
		h:        h,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(reporter),
		middleware.Recovery(),
	)
	if h.Metrics != nil {
		engine.Use(h.Metrics.Middleware())
	}
	engine.Use(
		middleware.CORS(config.CORS),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.SizeLimit),
	)
	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	timeout := config.Timeout
	timeout.SkipPaths = append(timeout.SkipPaths, subscribePath)
	engine.Use(middleware.Timeout(timeout))

	return r
}

// Setup mounts every route.
func (r *Router) Setup() {
	if r.h.Health != nil {
		r.h.Health.RegisterRoutes(r.engine)
	}
	if r.h.Metrics != nil {
		r.engine.GET("/metrics", r.h.Metrics.Handler())
	}

	api := r.engine.Group(APIPrefix)
	api.Use(middleware.Session(r.resolver))

	if r.h.Health != nil {
		r.h.Health.RegisterRoutes(api)
	}
	for _, records := range r.h.Records {
		records.RegisterRoutes(api)
	}
	if r.h.Forms != nil {
		r.h.Forms.RegisterRoutes(api)
	}
	if r.h.Submissions != nil {
		r.h.Submissions.RegisterRoutes(api)
	}
	if r.h.Conversations != nil {
		r.h.Conversations.RegisterRoutes(api)
	}
	if r.h.Channels != nil {
		r.h.Channels.RegisterRoutes(api)
	}

	adminOnly := middleware.RequireRole(auth.RoleAdmin)
	if r.h.Audit != nil {
		r.h.Audit.RegisterRoutes(api, adminOnly)
	}
	if r.h.Monitoring != nil {
		r.h.Monitoring.RegisterRoutes(api, adminOnly)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
