package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/handler"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

// maxExportRows caps a single export.
const maxExportRows = 10000

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes mounts the read-only audit endpoints behind guards.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	logs := r.Group("/audit-logs", guards...)
	{
		logs.GET("", h.ListLogs)
		logs.GET("/export", h.ExportLogs)
		logs.GET("/entity/:type/:entityId", h.GetEntityLogs)
		logs.GET("/:id", h.GetLog)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.respondWithPage(c, q)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	q.Filters = append(q.Filters,
		repository.Filter{Field: "entity_type", Op: repository.OpEq, Value: c.Param("type")},
		repository.Filter{Field: "entity_id", Op: repository.OpEq, Value: c.Param("entityId")},
	)
	h.respondWithPage(c, q)
}

func (h *Handler) GetLog(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entry)
}

// ExportLogs writes every entry matching the list filters as CSV or JSON.
func (h *Handler) ExportLogs(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, apperrors.NewBadRequest("unsupported format", nil))
		return
	}
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	q.PageSize = repository.MaxPageSize

	var logs []model.AuditLog
	for {
		page, err := h.service.List(c.Request.Context(), q)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		logs = append(logs, page.Items...)
		if !page.HasMore || len(logs) >= maxExportRows {
			break
		}
		q.Cursor = page.NextCursor
	}
	if len(logs) > maxExportRows {
		logs = logs[:maxExportRows]
	}

	filename := fmt.Sprintf("audit_logs_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Status(http.StatusOK)
		writer := csv.NewWriter(c.Writer)
		_ = writer.Write([]string{"ID", "Actor ID", "Actor Role", "Action", "Entity Type", "Entity ID", "IP Address", "Request ID", "Created At"})
		for _, entry := range logs {
			_ = writer.Write([]string{
				entry.ID,
				entry.ActorID,
				entry.ActorRole,
				entry.Action,
				entry.EntityType,
				entry.EntityID,
				entry.IPAddress,
				entry.RequestID,
				entry.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writer.Flush()
	case "json":
		httputil.RespondWithSuccess(c, logs)
	}
}

func (h *Handler) respondWithPage(c *gin.Context, q repository.Query) {
	page, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPage(c, page.Items, len(page.Items), page.NextCursor, page.HasMore)
}
