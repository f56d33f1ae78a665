package controller

import (
	"net/http"

	"github.com/designdesk/designdesk/config"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/locale"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// getRemoteIp returns the client address. Forwarding headers are honoured
// only from the configured trusted proxies.
func getRemoteIp(c *gin.Context) string {
	return c.ClientIP()
}

// html renders an HTML template with the provided data and title.
func html(c *gin.Context, name string, title string, data gin.H) {
	htmlStatus(c, http.StatusOK, name, title, data)
}

func htmlStatus(c *gin.Context, status int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	data["request_uri"] = c.Request.RequestURI
	data["user"] = session.GetLoginUser(c)
	data["notices"] = session.PopNotices(c)
	c.HTML(status, name, getContext(c, data))
}

// getContext adds version, locale and other context data to the provided gin.H.
func getContext(c *gin.Context, h gin.H) gin.H {
	a := gin.H{
		"cur_ver":  config.GetVersion(),
		"loc":      locale.FromContext(c),
		"statuses": model.Statuses(),
		"errors":   entity.FieldErrors{},
	}
	for key, value := range h {
		if errs, ok := value.(entity.FieldErrors); ok && errs == nil {
			continue
		}
		a[key] = value
	}
	return a
}
