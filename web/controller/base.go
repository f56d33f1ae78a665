// Package controller provides the HTTP handlers of designdesk: public pages,
// the user dashboard and the staff back office.
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/locale"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController provides common functionality for all controllers.
type BaseController struct{}

// I18nWeb retrieves an internationalized message based on the current locale.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	return locale.I18n(c, name, params...)
}

// landing returns the page a logged-in principal starts from.
func landing(user *session.Principal) string {
	if user != nil && user.IsStaff {
		return "/admin"
	}
	return "/dashboard"
}

// redirect sends a 303 so that a POST is followed by a GET.
func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// redirectWithNotice queues a notice and redirects.
func redirectWithNotice(c *gin.Context, location, level, key string, params ...string) {
	session.AddNotice(c, level, key, params...)
	redirect(c, location)
}

// paramID parses the numeric route parameter name.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleError renders the page matching a service error that is not a
// validation error: 404 for missing records, 500 for everything else.
func handleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		NotFound(c)
		return
	}
	logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	htmlStatus(c, http.StatusInternalServerError, "500.html", "pages.error.title", nil)
}

// NotFound renders the 404 page.
func NotFound(c *gin.Context) {
	htmlStatus(c, http.StatusNotFound, "404.html", "pages.notFound.title", nil)
}
