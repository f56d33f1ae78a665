package middleware

import (
	"net/http"

	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// LoginRequired sends anonymous visitors to the login page.
func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsLogin(c) {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}
