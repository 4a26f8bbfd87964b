package submission

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/handler"
	"github.com/jwalitptl/telehealth-admin/internal/service/submission"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

type Handler struct {
	service *submission.Service
}

func NewHandler(service *submission.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/forms/:id/submissions", h.ListForForm)
	r.POST("/forms/:id/submissions", h.Submit)

	submissions := r.Group("/submissions")
	{
		submissions.GET("", h.List)
		submissions.GET("/:id", h.Get)
		submissions.PUT("/:id", h.Revise)
		submissions.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	var req submission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid JSON body", err))
		return
	}
	sub, err := h.service.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, sub)
}

func (h *Handler) Revise(c *gin.Context) {
	var req submission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid JSON body", err))
		return
	}
	sub, err := h.service.Revise(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sub)
}

func (h *Handler) ListForForm(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	page, err := h.service.ListForForm(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPage(c, page.Items, len(page.Items), page.NextCursor, page.HasMore)
}

func (h *Handler) List(c *gin.Context) {
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

func (h *Handler) Get(c *gin.Context) {
	sub, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sub)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "submission deleted")
}
