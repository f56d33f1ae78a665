package middleware

import (
	"net/http"

	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// StaffRequired admits only staff principals. Anyone else is sent to their
// dashboard with an error notice. Use it after LoginRequired.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		if !user.IsStaff {
			logger.Warningf("user %q denied access to %s", user.Login, c.Request.URL.Path)
			session.AddNotice(c, session.Error, "notices.staffOnly")
			c.Redirect(http.StatusSeeOther, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}
