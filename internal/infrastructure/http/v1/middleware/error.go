package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	"stockflow/internal/infrastructure/http/v1/dto"
	"stockflow/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			status := appErr.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			body := dto.ErrorResponse{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}
			if status >= http.StatusInternalServerError {
				// The cause stays in the log.
				body.Message = "Internal server error"
				body.Details = map[string]any{"request_id": c.GetString("request_id")}
			}
			c.JSON(status, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{
				"request_id": c.GetString("request_id"),
			},
		})
	}
}
