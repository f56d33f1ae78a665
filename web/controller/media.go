package controller

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/designdesk/designdesk/web/storage"

	"github.com/gin-gonic/gin"
)

// MediaController serves stored images under storage.URLPrefix.
type MediaController struct {
	BaseController
}

func NewMediaController(g *gin.RouterGroup) *MediaController {
	a := &MediaController{}
	a.initRouter(g)
	return a
}

func (a *MediaController) initRouter(g *gin.RouterGroup) {
	g.GET(strings.TrimSuffix(storage.URLPrefix, "/")+"/*key", a.serve)
}

func (a *MediaController) serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	file, info, err := storage.GetStore().Open(key)
	if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, os.ErrNotExist) {
		NotFound(c)
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Close()

	c.Header("Cache-Control", "private, max-age=86400")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
