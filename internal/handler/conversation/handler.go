package conversation

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/handler"
	"github.com/jwalitptl/telehealth-admin/internal/handler/records"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/service/messaging"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

type SendMessageRequest struct {
	Body string `json:"body" binding:"required,max=10000"`
}

type Handler struct {
	conversations *records.Handler[model.Conversation]
	service       *messaging.Service
}

func NewHandler(service *messaging.Service) *Handler {
	return &Handler{
		conversations: records.NewHandler[model.Conversation](service.Conversations, "/conversations"),
		service:       service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	h.conversations.RegisterRoutes(r)

	messages := r.Group("/conversations/:id/messages")
	{
		messages.GET("", h.ListMessages)
		messages.POST("", h.SendMessage)
		messages.POST("/:messageId/read", h.MarkRead)
	}
}

func (h *Handler) ListMessages(c *gin.Context) {
	q, err := handler.ParseQuery(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	page, err := h.service.Messages(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPage(c, page.Items, len(page.Items), page.NextCursor, page.HasMore)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}
	msg, err := h.service.Send(c.Request.Context(), c.Param("id"), req.Body)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	msg, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), c.Param("messageId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, msg)
}
