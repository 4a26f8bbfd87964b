// Package records serves list, get, create, update and delete for any
// entity collection backed by a records service.
package records

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/handler"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

// Service is the subset of records.Service the handler needs.
type Service[T any] interface {
	List(ctx context.Context, q repository.Query) (*repository.Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, item *T) (*T, error)
	Update(ctx context.Context, id string, patch model.Document) (*T, error)
	Delete(ctx context.Context, id string) error
}

type Handler[T any] struct {
	service Service[T]
	path    string
}

// NewHandler serves service under path, e.g. "/patients".
func NewHandler[T any](service Service[T], path string) *Handler[T] {
	return &Handler[T]{service: service, path: path}
}

func (h *Handler[T]) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	g := r.Group(h.path, guards...)
	{
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.PATCH("/:id", h.Update)
		g.DELETE("/:id", h.Delete)
	}
}

func (h *Handler[T]) List(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	page, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPage(c, page.Items, len(page.Items), page.NextCursor, page.HasMore)
}

func (h *Handler[T]) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, item)
}

func (h *Handler[T]) Create(c *gin.Context) {
	doc, err := handler.BindDocument(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	item, err := handler.Decode[T](doc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	created, err := h.service.Create(c.Request.Context(), item)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

// Update applies the body as a shallow patch.
func (h *Handler[T]) Update(c *gin.Context) {
	patch, err := handler.BindDocument(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler[T]) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
