package form

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/handler/records"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/service/form"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

type EvaluateRequest struct {
	Data map[string]interface{} `json:"data"`
}

type Handler struct {
	*records.Handler[model.Form]
	service *form.Service
}

func NewHandler(service *form.Service) *Handler {
	return &Handler{
		Handler: records.NewHandler[model.Form](service, "/forms"),
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	forms := r.Group("/forms")
	{
		forms.GET("", h.List)
		forms.POST("", h.CreateForm)
		forms.POST("/validate", h.ValidateSchema)
		forms.GET("/:id", h.Get)
		forms.PUT("/:id", h.Update)
		forms.PATCH("/:id", h.Update)
		forms.DELETE("/:id", h.Delete)
		forms.POST("/:id/evaluate", h.Evaluate)
		forms.POST("/:id/publish", h.Publish)
		forms.POST("/:id/archive", h.Archive)
	}
}

// CreateForm stores the body as a new draft after full schema validation.
func (h *Handler) CreateForm(c *gin.Context) {
	var raw interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid JSON body", err))
		return
	}
	f, err := h.service.CreateFromRaw(c.Request.Context(), raw)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, f)
}

// ValidateSchema reports schema errors without storing anything. An
// invalid schema is still a 200; the result carries isValid=false.
func (h *Handler) ValidateSchema(c *gin.Context) {
	var raw interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid JSON body", err))
		return
	}
	httputil.RespondWithSuccess(c, h.service.ValidateSchema(raw))
}

func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid JSON body", err))
		return
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	res, err := h.service.Evaluate(c.Request.Context(), c.Param("id"), req.Data)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, res)
}

func (h *Handler) Publish(c *gin.Context) {
	f, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}

func (h *Handler) Archive(c *gin.Context) {
	f, err := h.service.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}
