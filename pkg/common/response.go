package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents a standard control-API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse sends an error response with an explicit status code
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Message: message,
		},
	})
}

// AppErrorResponse maps an AppError onto the control-API response shape
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.HTTPStatus(), Response{
		Success: false,
		Error: &ErrorInfo{
			Kind:    err.Kind,
			Message: err.Message,
		},
	})
}
