package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/repository"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination represents cursor pagination metadata
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Count      int    `json:"count"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Data: data})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: StatusSuccess, Data: data})
}

// RespondWithMessage sends a success response without data
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Message: message})
}

// RespondWithPage sends one page of a cursor-paginated listing
func RespondWithPage(c *gin.Context, items interface{}, count int, nextCursor string, hasMore bool) {
	c.JSON(http.StatusOK, Response{
		Status: StatusSuccess,
		Data:   items,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
			Count:      count,
		},
	})
}

// RespondWithError sends an error response. err is also attached to the
// context for the error middleware.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, message, details := ErrorResponse(err)
	c.JSON(status, Response{Status: StatusError, Message: message, Details: details})
}

// ErrorResponse resolves err to an HTTP status and a message safe to show
// the caller.
func ErrorResponse(err error) (int, string, interface{}) {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode(), appErr.Message, appErr.Details
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "validation failed", verr.Fields
	}

	var repoErr *repository.Error
	if errors.As(err, &repoErr) {
		if repoErr.Code == repository.CodeInvalidArgument && repoErr.Err != nil {
			return http.StatusBadRequest, repoErr.Err.Error(), nil
		}
		return repositoryStatus(repoErr.Code), repository.UserMessage(err), nil
	}

	return http.StatusInternalServerError, repository.UserMessage(err), nil
}

func repositoryStatus(code repository.Code) int {
	switch code {
	case repository.CodeNotFound:
		return http.StatusNotFound
	case repository.CodePermissionDenied:
		return http.StatusForbidden
	case repository.CodeAlreadyExists:
		return http.StatusConflict
	case repository.CodeInvalidArgument:
		return http.StatusBadRequest
	case repository.CodeUnavailable:
		return http.StatusServiceUnavailable
	case repository.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case repository.CodeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
