package controller

import (
	"html/template"
	"net/http"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// IndexController handles the public pages, registration and login.
type IndexController struct {
	BaseController

	settingService service.SettingService
	userService    service.UserService
	requestService service.RequestService
}

// NewIndexController creates a new IndexController and initializes its routes.
// limiter guards the credential-accepting POST routes.
func NewIndexController(g *gin.RouterGroup, limiter gin.HandlerFunc) *IndexController {
	a := &IndexController{}
	a.initRouter(g, limiter)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup, limiter gin.HandlerFunc) {
	g.GET("/", a.index)
	g.GET("/health", a.health)

	g.GET("/register", a.registerPage)
	g.POST("/register", limiter, a.register)
	g.GET("/login", a.loginPage)
	g.POST("/login", limiter, a.login)
	g.POST("/logout", a.logout)
}

// index shows the newest completed requests and the number in progress.
func (a *IndexController) index(c *gin.Context) {
	completed, err := a.requestService.GetCompletedRequests(service.HomeShowcaseSize)
	if err != nil {
		handleError(c, err)
		return
	}
	inProgress, err := a.requestService.CountByStatus(model.StatusInProgress)
	if err != nil {
		handleError(c, err)
		return
	}
	html(c, "index.html", "pages.home.title", gin.H{
		"completed":   completed,
		"in_progress": inProgress,
	})
}

func (a *IndexController) health(c *gin.Context) {
	sqlDB, err := database.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		logger.Warning("health check failed:", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *IndexController) registerPage(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		redirect(c, landing(user))
		return
	}
	html(c, "register.html", "pages.register.title", gin.H{"form": &entity.RegisterForm{}})
}

func (a *IndexController) register(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		redirect(c, landing(user))
		return
	}
	form := &entity.RegisterForm{}
	if err := c.ShouldBind(form); err != nil {
		redirectWithNotice(c, "/register", session.Error, "notices.invalidForm")
		return
	}

	user, err := a.userService.Register(form)
	if errs := service.FieldErrorsOf(err); errs != nil {
		html(c, "register.html", "pages.register.title", gin.H{"form": form, "errors": errs})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	if err := a.startSession(c, user); err != nil {
		handleError(c, err)
		return
	}
	logger.Infof("%s registered from %s", user.Login, getRemoteIp(c))
	redirectWithNotice(c, landing(session.GetLoginUser(c)), session.Success, "notices.registered")
}

func (a *IndexController) loginPage(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		redirect(c, landing(user))
		return
	}
	html(c, "login.html", "pages.login.title", gin.H{"form": &entity.LoginForm{}})
}

// login handles user authentication and session creation.
func (a *IndexController) login(c *gin.Context) {
	form := &entity.LoginForm{}
	if err := c.ShouldBind(form); err != nil {
		redirectWithNotice(c, "/login", session.Error, "notices.invalidForm")
		return
	}
	errs := form.Validate()
	if errs.Empty() {
		user := a.userService.CheckUser(form.Username, form.Password)
		if user != nil {
			if err := a.startSession(c, user); err != nil {
				handleError(c, err)
				return
			}
			logger.Infof("%s logged in successfully, Ip Address: %s", user.Login, getRemoteIp(c))
			redirectWithNotice(c, landing(session.GetLoginUser(c)), session.Success, "notices.loggedIn")
			return
		}
		logger.Warningf("wrong username: %q, IP: %q", template.HTMLEscapeString(form.Username), getRemoteIp(c))
		errs.Add(entity.NonFieldErrors, "errors.wrongCredentials")
	}
	form.Password = ""
	html(c, "login.html", "pages.login.title", gin.H{"form": form, "errors": errs})
}

// logout clears the session and returns to the home page.
func (a *IndexController) logout(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		logger.Infof("%s logged out successfully", user.Login)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("Unable to save session after clearing:", err)
	}
	redirect(c, "/")
}

func (a *IndexController) startSession(c *gin.Context, user *model.User) error {
	sessionMaxAge, err := a.settingService.GetSessionMaxAge()
	if err != nil {
		logger.Warning("Unable to get session's max age from DB")
	}
	if err := session.SetMaxAge(c, sessionMaxAge*60); err != nil {
		return err
	}
	return session.SetLoginUser(c, user)
}
