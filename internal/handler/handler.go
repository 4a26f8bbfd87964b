// Package handler holds request parsing shared by the REST handlers.
package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

// ParseQuery reads the list parameters of a collection endpoint:
//
//	filter=field:op:value  (repeatable)
//	sort=field  dir=asc|desc  page_size=N  cursor=token
func ParseQuery(c *gin.Context) (repository.Query, error) {
	q := repository.Query{
		OrderBy: c.Query("sort"),
		Cursor:  c.Query("cursor"),
	}

	for _, raw := range c.QueryArray("filter") {
		f, err := repository.ParseFilter(raw)
		if err != nil {
			return q, apperrors.NewBadRequest(err.Error(), err)
		}
		q.Filters = append(q.Filters, f)
	}

	if q.OrderBy != "" && !repository.ValidField(q.OrderBy) {
		return q, apperrors.NewBadRequest(fmt.Sprintf("invalid sort field %q", q.OrderBy), nil)
	}

	switch dir := repository.Direction(strings.ToLower(c.Query("dir"))); dir {
	case "":
	case repository.Asc, repository.Desc:
		q.Direction = dir
	default:
		return q, apperrors.NewBadRequest("dir must be asc or desc", nil)
	}

	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, apperrors.NewBadRequest("page_size must be a positive integer", err)
		}
		q.PageSize = n
	}
	return q, nil
}

// BindDocument decodes a JSON object body. Fields the repository owns are
// dropped so clients can't set them.
func BindDocument(c *gin.Context) (model.Document, error) {
	var doc model.Document
	if err := json.NewDecoder(c.Request.Body).Decode(&doc); err != nil {
		return nil, apperrors.NewBadRequest("request body must be a JSON object", err)
	}
	if doc == nil {
		return nil, apperrors.NewBadRequest("request body must be a JSON object", nil)
	}
	delete(doc, "id")
	delete(doc, "created_at")
	delete(doc, "updated_at")
	return doc, nil
}

// Decode converts a document into T.
func Decode[T any](doc model.Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid request body", err)
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid request body: %v", err), err)
	}
	return &item, nil
}
