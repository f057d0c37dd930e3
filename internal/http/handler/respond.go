package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentalapp/mentalapp-api/internal/service"
)

// envelope is the uniform JSON response shape. Exactly one of Data and
// Errors is present per response.
type envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respondSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Status: true, Message: message, Data: data})
}

func respondFailure(c *gin.Context, status int, message string, errors map[string]string) {
	c.JSON(status, envelope{Status: false, Message: message, Errors: errors})
}

// respondError maps service errors onto the failure envelope. Anything
// outside the taxonomy renders as a generic server error with no field
// detail.
func respondError(c *gin.Context, err error) {
	if svcErr, ok := err.(*service.Error); ok {
		respondFailure(c, svcErr.Status, svcErr.Message, svcErr.Fields)
		return
	}
	respondFailure(c, http.StatusInternalServerError, "Something went wrong.", map[string]string{"server": "Unexpected server error."})
}
