package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error interface{} `json:"error"`
}

// Respond writes data as JSON with the given status code.
func Respond(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, data)
}

// Invalid reports itemized validation reasons with status 400.
func Invalid(ctx *gin.Context, reasons ...string) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: reasons})
}

// Error reports a single message with the given status.
func Error(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
