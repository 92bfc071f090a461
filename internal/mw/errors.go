package mw

import (
	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
)

// Abort stops the chain and writes err in the standard failure envelope.
func Abort(c *gin.Context, err error) {
	body := apperr.ToBody(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(body.Kind), gin.H{"success": false, "error": body})
}
