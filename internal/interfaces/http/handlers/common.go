// Package handlers implements the REST endpoints for submitting
// analyses and retrieving reports.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/RxDossier/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error to its HTTP status and writes
// the structured body. Internal causes are not leaked to the client.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := err.Error()
	if status >= 500 {
		_ = c.Error(err)
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    code.String(),
		Message: message,
	})
}
