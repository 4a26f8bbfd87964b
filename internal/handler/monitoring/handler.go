package monitoring

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/handler"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/monitoring"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

type EventBatch struct {
	Events []monitoring.Event `json:"events" binding:"required,min=1,max=100,dive"`
}

type MetricBatch struct {
	Metrics []monitoring.Metric `json:"metrics" binding:"required,min=1,max=100,dive"`
}

type IngestResponse struct {
	Accepted int                 `json:"accepted"`
	Dropped  int                 `json:"dropped"`
	Results  []monitoring.Result `json:"results,omitempty"`
}

type Handler struct {
	monitor *monitoring.Monitor
	events  repository.Reader[model.MonitoringEvent]
	logger  *logger.Logger
}

func NewHandler(monitor *monitoring.Monitor, events repository.Reader[model.MonitoringEvent], l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{monitor: monitor, events: events, logger: l.With("monitoring-handler")}
}

// RegisterRoutes mounts ingest for everyone and the event listing behind
// readGuards.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, readGuards ...gin.HandlerFunc) {
	g := r.Group("/monitoring")
	{
		g.POST("/events", h.CaptureEvents)
		g.POST("/metrics", h.RecordMetrics)
		g.GET("/events", append(readGuards, h.ListEvents)...)
	}
}

// CaptureEvents queues a batch of client reports. Reports over the rate
// limit are dropped and counted, not rejected.
func (h *Handler) CaptureEvents(c *gin.Context) {
	var batch EventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	for i, e := range batch.Events {
		if !e.Level.Valid() {
			httputil.RespondWithError(c, apperrors.NewBadRequest(
				fmt.Sprintf("events[%d]: %v", i, monitoring.ErrInvalidLevel), nil))
			return
		}
	}

	ctx := c.Request.Context()
	sess := auth.FromContext(ctx)
	resp := IngestResponse{Results: make([]monitoring.Result, 0, len(batch.Events))}
	for _, e := range batch.Events {
		if e.UserID == "" && sess.IsAuthenticated() {
			e.UserID = sess.UserID()
		}
		if e.UserAgent == "" {
			e.UserAgent = c.Request.UserAgent()
		}
		e.Source = "client"

		res, err := h.monitor.Capture(ctx, e)
		if err != nil {
			// the event is queued; only delivery failed
			h.logger.Error(err, "flush after capture failed", "name", e.Name)
		}
		if res.Accepted {
			resp.Accepted++
		} else {
			resp.Dropped++
		}
		resp.Results = append(resp.Results, res)
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) RecordMetrics(c *gin.Context) {
	var batch MetricBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	resp := IngestResponse{}
	for _, m := range batch.Metrics {
		if err := h.monitor.RecordMetric(m); err != nil {
			resp.Dropped++
			continue
		}
		resp.Accepted++
	}
	httputil.RespondWithSuccess(c, resp)
}

// ListEvents pages through stored events, newest first by default.
func (h *Handler) ListEvents(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if q.OrderBy == "" {
		q.OrderBy = "created_at"
		if q.Direction == "" {
			q.Direction = repository.Desc
		}
	}
	page, err := h.events.GetAll(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPage(c, page.Items, len(page.Items), page.NextCursor, page.HasMore)
}
