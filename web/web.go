// Package web provides the designdesk HTTP server: routing, templates,
// sessions and TLS serving.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/designdesk/designdesk/caching"
	"github.com/designdesk/designdesk/config"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/util/common"
	"github.com/designdesk/designdesk/web/controller"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/locale"
	"github.com/designdesk/designdesk/web/middleware"
	"github.com/designdesk/designdesk/web/network"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"
	"github.com/designdesk/designdesk/web/storage"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

//go:embed html/*
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

// maxUploadMemory bounds the part of a multipart body kept in memory.
const maxUploadMemory = 8 << 20

// Server is the designdesk web server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	index   *controller.IndexController
	request *controller.RequestController
	admin   *controller.AdminController
	media   *controller.MediaController

	settingService service.SettingService
	cache          *caching.Cache
}

// NewServer creates a new web server instance.
func NewServer() *Server {
	return &Server{}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"i18n": func(loc *i18n.Localizer, key string, params ...string) string {
			return locale.Localize(loc, key, params...)
		},
		"fieldErrors": func(loc *i18n.Localizer, errs entity.FieldErrors, field string) []string {
			msgs := make([]string, 0, len(errs[field]))
			for _, m := range errs[field] {
				msgs = append(msgs, locale.Localize(loc, m.Key, "Param=="+m.Param))
			}
			return msgs
		},
		"notice": func(loc *i18n.Localizer, n session.Notice) string {
			return locale.Localize(loc, n.Key, n.Params...)
		},
		"media": storage.URL,
		"date": func(t time.Time) string {
			return t.Local().Format("02.01.2006 15:04")
		},
	}
}

// getHtmlFiles walks the local `web/html` directory and returns a list of
// template file paths. Used only in debug/development mode.
func (s *Server) getHtmlFiles() ([]string, error) {
	files := make([]string, 0)
	dir, _ := os.Getwd()
	err := fs.WalkDir(os.DirFS(dir), "web/html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// getHtmlTemplate parses the embedded HTML templates.
func (s *Server) getHtmlTemplate(funcMap template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(htmlFS, "html/*.html")
}

// initRouter initializes Gin, registers middleware, templates and
// controllers and returns the configured engine.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	engine.MaxMultipartMemory = maxUploadMemory

	proxies, err := s.settingService.GetTrustedProxies()
	if err != nil {
		return nil, err
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		return nil, err
	}

	if err := locale.InitLocalizer(i18nFS); err != nil {
		return nil, err
	}

	secret, err := s.settingService.GetSecret()
	if err != nil {
		return nil, err
	}
	sessionMaxAge, err := s.settingService.GetSessionMaxAge()
	if err != nil {
		return nil, err
	}
	store := cookie.NewStore(secret)
	store.Options(session.Options(sessionMaxAge * 60))

	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`\.(png|jpe?g|bmp)$`})))
	engine.Use(sessions.Sessions(session.CookieName, store))
	engine.Use(locale.LocalizerMiddleware())

	funcMap := templateFuncs()
	engine.SetFuncMap(funcMap)
	if config.IsDebug() {
		files, err := s.getHtmlFiles()
		if err != nil {
			return nil, err
		}
		engine.LoadHTMLFiles(files...)
	} else {
		tpl, err := s.getHtmlTemplate(funcMap)
		if err != nil {
			return nil, err
		}
		engine.SetHTMLTemplate(tpl)
	}

	rateLimit, err := s.settingService.GetRateLimit()
	if err != nil {
		return nil, err
	}
	s.cache = caching.NewCache()
	if err := s.cache.Init(); err != nil {
		return nil, err
	}
	limiter := middleware.RateLimitMiddleware(s.cache, middleware.DefaultRateLimitConfig(rateLimit))

	g := engine.Group("/")
	s.index = controller.NewIndexController(g, limiter)
	s.request = controller.NewRequestController(g)
	s.admin = controller.NewAdminController(g)
	s.media = controller.NewMediaController(g)

	engine.NoRoute(controller.NotFound)

	return engine, nil
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	certFile, err := s.settingService.GetCertFile()
	if err != nil {
		return err
	}
	keyFile, err := s.settingService.GetKeyFile()
	if err != nil {
		return err
	}
	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	if certFile != "" || keyFile != "" {
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
			cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			listener = network.NewAutoHttpsListener(listener)
			listener = tls.NewListener(listener, cfg)
			logger.Info("Web server running HTTPS on", listener.Addr())
		} else {
			logger.Error("Error loading certificates:", err)
			logger.Info("Web server running HTTP on", listener.Addr())
		}
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer common.Recover("web server panic")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server stopped:", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the web server.
func (s *Server) Stop() error {
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	if s.cache != nil {
		_ = s.cache.Flush()
	}
	return common.Combine(err1, err2)
}
