package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery/internal/core/apperror"
	"bakery/pkg/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error pushed with c.Error as JSON.
// Handlers never write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		writeError(c)
	}
}

// writeError renders the pending error unless a response exists already.
func writeError(c *gin.Context) {
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	status, body := renderError(c, c.Errors.Last().Err)
	c.JSON(status, body)
}

func renderError(c *gin.Context, err error) (int, ErrorResponse) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		return http.StatusInternalServerError, ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}
	}

	if appErr.IsServerSide() {
		logger.Error(c.Request.Context(), "request failed",
			"code", appErr.Code,
			"cause", appErr.Err,
			"path", c.FullPath(),
		)
		return appErr.HTTPStatus, ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}
	}

	return appErr.HTTPStatus, ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}
