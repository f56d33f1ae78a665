package controller

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/middleware"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// RequestController serves the pages of a logged-in user: the dashboard and
// filing or withdrawing design requests.
type RequestController struct {
	BaseController

	requestService  service.RequestService
	categoryService service.CategoryService
}

func NewRequestController(g *gin.RouterGroup) *RequestController {
	a := &RequestController{}
	a.initRouter(g)
	return a
}

func (a *RequestController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/")
	g.Use(middleware.LoginRequired())

	g.GET("/dashboard", a.dashboard)
	g.GET("/requests/new", a.createPage)
	g.POST("/requests/new", a.create)
	g.GET("/requests/:id/delete", a.deletePage)
	g.POST("/requests/:id/delete", a.delete)
}

// dashboard lists the caller's requests, optionally filtered by ?status=.
func (a *RequestController) dashboard(c *gin.Context) {
	user := session.GetLoginUser(c)
	status := c.Query("status")
	requests, err := a.requestService.GetUserRequests(user.Id, status)
	if err != nil {
		handleError(c, err)
		return
	}
	html(c, "dashboard.html", "pages.dashboard.title", gin.H{
		"requests": requests,
		"filter":   status,
	})
}

func (a *RequestController) createPage(c *gin.Context) {
	if session.IsStaff(c) {
		redirectWithNotice(c, "/admin", session.Error, "notices.staffCannotCreate")
		return
	}
	a.renderCreate(c, &entity.DesignRequestForm{}, nil)
}

func (a *RequestController) create(c *gin.Context) {
	if session.IsStaff(c) {
		redirectWithNotice(c, "/admin", session.Error, "notices.staffCannotCreate")
		return
	}
	form := &entity.DesignRequestForm{}
	if err := c.ShouldBind(form); err != nil {
		redirectWithNotice(c, "/requests/new", session.Error, "notices.invalidForm")
		return
	}
	form.PlanImage = formFile(c, "plan_image")

	user := session.GetLoginUser(c)
	request, err := a.requestService.CreateRequest(user.Id, form)
	if errs := service.FieldErrorsOf(err); errs != nil {
		a.renderCreate(c, form, errs)
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	redirectWithNotice(c, "/dashboard", session.Success, "notices.requestCreated", "Title=="+request.Title)
}

func (a *RequestController) renderCreate(c *gin.Context, form *entity.DesignRequestForm, errs entity.FieldErrors) {
	categories, err := a.categoryService.GetCategories()
	if err != nil {
		handleError(c, err)
		return
	}
	html(c, "request_form.html", "pages.requestNew.title", gin.H{
		"form":       form,
		"errors":     errs,
		"categories": categories,
	})
}

// deletePage asks the owner to confirm. Requests already taken by staff
// cannot be withdrawn.
func (a *RequestController) deletePage(c *gin.Context) {
	request, ok := a.deletable(c)
	if !ok {
		return
	}
	html(c, "request_delete.html", "pages.requestDelete.title", gin.H{"request": request})
}

func (a *RequestController) delete(c *gin.Context) {
	if _, ok := a.deletable(c); !ok {
		return
	}
	id, _ := paramID(c, "id")
	user := session.GetLoginUser(c)
	request, err := a.requestService.DeleteRequest(id, user.Id)
	if err != nil {
		a.deleteFailed(c, request, err)
		return
	}
	redirectWithNotice(c, "/dashboard", session.Success, "notices.requestDeleted", "Title=="+request.Title)
}

func (a *RequestController) deletable(c *gin.Context) (*model.DesignRequest, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		NotFound(c)
		return nil, false
	}
	user := session.GetLoginUser(c)
	request, err := a.requestService.CheckDeletable(id, user.Id)
	if err != nil {
		a.deleteFailed(c, request, err)
		return nil, false
	}
	return request, true
}

func (a *RequestController) deleteFailed(c *gin.Context, request *model.DesignRequest, err error) {
	if errors.Is(err, service.ErrStatusLocked) {
		redirectWithNotice(c, "/dashboard", session.Error, "notices.requestLocked", "Title=="+request.Title)
		return
	}
	handleError(c, err)
}

// formFile returns the uploaded file of field, or nil when none was sent.
func formFile(c *gin.Context, field string) *multipart.FileHeader {
	header, err := c.FormFile(field)
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			c.Error(err)
		}
		return nil
	}
	if header.Filename == "" && header.Size == 0 {
		return nil
	}
	return header
}
