package controller

import (
	"errors"

	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/middleware"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

const recentAuditSize = 10

// AdminController serves the staff back office: triage of requests and the
// category taxonomy.
type AdminController struct {
	BaseController

	requestService  service.RequestService
	categoryService service.CategoryService
	auditService    service.AuditLogService
}

func NewAdminController(g *gin.RouterGroup) *AdminController {
	a := &AdminController{}
	a.initRouter(g)
	return a
}

func (a *AdminController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/admin")
	g.Use(middleware.LoginRequired(), middleware.StaffRequired(), middleware.AuditMiddleware())

	g.GET("", a.dashboard)
	g.GET("/", a.dashboard)
	g.GET("/requests/:id/status", a.statusPage)
	g.POST("/requests/:id/status", a.changeStatus)
	g.GET("/categories", a.categories)
	g.POST("/categories", a.addCategory)
	g.POST("/categories/:id/delete", a.deleteCategory)
}

// dashboard lists every request, optionally filtered by ?status=.
func (a *AdminController) dashboard(c *gin.Context) {
	status := c.Query("status")
	requests, err := a.requestService.GetAllRequests(status)
	if err != nil {
		handleError(c, err)
		return
	}
	logs, err := a.auditService.GetRecentLogs(recentAuditSize)
	if err != nil {
		handleError(c, err)
		return
	}
	html(c, "admin.html", "pages.admin.title", gin.H{
		"requests":  requests,
		"filter":    status,
		"audit_log": logs,
	})
}

// statusPage shows the status form. Requests that already left "new" are
// never shown again.
func (a *AdminController) statusPage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		NotFound(c)
		return
	}
	request, err := a.requestService.CheckChangeable(id)
	if err != nil {
		a.statusFailed(c, request, err)
		return
	}
	a.renderStatus(c, request, &entity.StatusForm{}, nil)
}

func (a *AdminController) changeStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		NotFound(c)
		return
	}
	form := &entity.StatusForm{}
	if err := c.ShouldBind(form); err != nil {
		redirectWithNotice(c, c.Request.URL.Path, session.Error, "notices.invalidForm")
		return
	}
	form.DesignImage = formFile(c, "design_image")

	request, err := a.requestService.ChangeStatus(id, form)
	if errs := service.FieldErrorsOf(err); errs != nil {
		a.renderStatus(c, request, form, errs)
		return
	}
	if err != nil {
		a.statusFailed(c, request, err)
		return
	}

	middleware.Audit(c, middleware.AuditEntry{
		Action:     service.AuditStatusChange,
		Resource:   "design_request",
		ResourceID: request.Id,
		Details:    map[string]any{"status": string(request.Status), "title": request.Title},
	})
	redirectWithNotice(c, "/admin", session.Success, "notices.statusChanged",
		"Title=="+request.Title,
		"Status=="+I18nWeb(c, request.Status.LabelKey()))
}

func (a *AdminController) renderStatus(c *gin.Context, request *model.DesignRequest, form *entity.StatusForm, errs entity.FieldErrors) {
	html(c, "status_form.html", "pages.status.title", gin.H{
		"request": request,
		"form":    form,
		"errors":  errs,
		"targets": request.Status.Targets(),
	})
}

func (a *AdminController) statusFailed(c *gin.Context, request *model.DesignRequest, err error) {
	if errors.Is(err, service.ErrStatusLocked) {
		redirectWithNotice(c, "/admin", session.Error, "notices.statusLocked",
			"Title=="+request.Title,
			"Status=="+I18nWeb(c, request.Status.LabelKey()))
		return
	}
	handleError(c, err)
}

func (a *AdminController) categories(c *gin.Context) {
	a.renderCategories(c, &entity.CategoryForm{}, nil)
}

func (a *AdminController) renderCategories(c *gin.Context, form *entity.CategoryForm, errs entity.FieldErrors) {
	stats, err := a.categoryService.GetCategoryStats()
	if err != nil {
		handleError(c, err)
		return
	}
	html(c, "categories.html", "pages.categories.title", gin.H{
		"categories": stats,
		"form":       form,
		"errors":     errs,
	})
}

func (a *AdminController) addCategory(c *gin.Context) {
	form := &entity.CategoryForm{}
	if err := c.ShouldBind(form); err != nil {
		redirectWithNotice(c, "/admin/categories", session.Error, "notices.invalidForm")
		return
	}
	category, err := a.categoryService.AddCategory(form)
	if errs := service.FieldErrorsOf(err); errs != nil {
		a.renderCategories(c, form, errs)
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	middleware.Audit(c, middleware.AuditEntry{
		Action:     service.AuditCategoryAdd,
		Resource:   "category",
		ResourceID: category.Id,
		Details:    map[string]any{"name": category.Name},
	})
	redirectWithNotice(c, "/admin/categories", session.Success, "notices.categoryAdded", "Name=="+category.Name)
}

// deleteCategory removes a category with all of its requests.
func (a *AdminController) deleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		redirectWithNotice(c, "/admin/categories", session.Error, "notices.categoryInvalid")
		return
	}
	category, err := a.categoryService.DeleteCategory(id)
	if err != nil {
		handleError(c, err)
		return
	}

	middleware.Audit(c, middleware.AuditEntry{
		Action:     service.AuditCategoryDelete,
		Resource:   "category",
		ResourceID: category.Id,
		Details:    map[string]any{"name": category.Name},
	})
	redirectWithNotice(c, "/admin/categories", session.Success, "notices.categoryDeleted", "Name=="+category.Name)
}
