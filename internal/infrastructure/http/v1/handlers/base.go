// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// DecodeJSON decodes the body without checking `validate` tags.
func (h *BaseHandler) DecodeJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if _, ok := apperror.AsAppError(err); !ok {
			err = apperror.NewValidation("invalid request body").WithDetail("error", err.Error())
		}
		h.Error(c, err)
		return false
	}
	return true
}

// BindJSON decodes the body and checks its `validate` tags.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if !h.DecodeJSON(c, obj) {
		return false
	}
	if err := dto.Validate(obj); err != nil {
		h.Error(c, err)
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	if err := dto.Validate(obj); err != nil {
		h.Error(c, err)
		return false
	}
	return true
}

// PathID parses a UUID path parameter.
func (h *BaseHandler) PathID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := dto.ParseID(name, c.Param(name))
	if err != nil {
		h.Error(c, err)
		return id.ID{}, false
	}
	return parsed, true
}

// Error registers err on the Gin context and aborts the request.
// The JSON body is written by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
