package dto

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ssoguard/pkg/errors"
)

// SendError writes err as an OAuth-style error body with its HTTP status. 401 responses
// carry a WWW-Authenticate challenge.
func SendError(c *gin.Context, err error) {
	status, body := errors.ToGenericErrorResponse(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer error=%q`, body.Error))
	}
	c.AbortWithStatusJSON(status, body)
}

// SendSuccess writes data as JSON.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
