package web

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/storage"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

// newTestServer serves the router on a fresh database. seed runs before the
// router reads its settings.
func newTestServer(t *testing.T, seed ...func()) *httptest.Server {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "web.db")))
	storage.InitStore(memfs.New())
	for _, f := range seed {
		f()
	}

	s := NewServer()
	engine, err := s.initRouter()
	require.NoError(t, err)

	ts := httptest.NewServer(engine)
	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop()
		_ = database.CloseDB()
	})
	return ts
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// pngOf returns a 1x1 PNG padded with trailing zeros to size bytes.
func pngOf(t *testing.T, size int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	require.LessOrEqual(t, buf.Len(), size)
	buf.Write(make([]byte, size-buf.Len()))
	return buf.Bytes()
}

// postMultipart sends fields and, when fileField is set, a PNG file of size bytes.
func (b *browser) postMultipart(path string, fields map[string]string, fileField, fileName string, size int) (int, string, string) {
	b.t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(b.t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(b.t, err)
		_, err = part.Write(pngOf(b.t, size))
		require.NoError(b.t, err)
	}
	require.NoError(b.t, w.Close())

	req, err := http.NewRequest(http.MethodPost, b.base+path, body)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return b.do(req)
}

func (b *browser) login(login, password string) {
	b.t.Helper()
	status, _, _ := b.post("/login", url.Values{"username": {login}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, status)
}

func registration(login, email string) url.Values {
	return url.Values{
		"username":       {login},
		"email":          {email},
		"password1":      {"secret-1"},
		"password2":      {"secret-1"},
		"full_name":      {"Иванов Иван Иванович"},
		"agree_to_terms": {"on"},
	}
}

func mustStaff(t *testing.T) {
	t.Helper()
	userService := service.UserService{}
	_, err := userService.CreateStaff(&entity.RegisterForm{
		Login:     "admin",
		Email:     "admin@example.com",
		Password1: "admin-pass",
		Password2: "admin-pass",
		FullName:  "Петров Пётр",
		Consent:   "on",
	})
	require.NoError(t, err)
}

func mustCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	categoryService := service.CategoryService{}
	category, err := categoryService.AddCategory(&entity.CategoryForm{Name: name})
	require.NoError(t, err)
	return category
}

func TestRegisterLogsIn(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	status, location, _ := b.post("/register", registration("ivan", "ivan@example.com"))
	require.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	userService := service.UserService{}
	user := userService.CheckUser("ivan", "secret-1")
	require.NotNil(t, user)
	assert.Equal(t, "Иван", user.FirstName)
	assert.Equal(t, "Иванов Иванович", user.LastName)

	status, _, body := b.get("/dashboard")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Регистрация прошла успешно.")
	assert.Contains(t, body, "Иванов Иванович Иван")

	// The notice is shown once.
	_, _, body = b.get("/dashboard")
	assert.NotContains(t, body, "Регистрация прошла успешно.")

	status, location, _ = b.get("/register")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)
}

func TestRegisterRerendersWithAllErrors(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	form := registration("ivan!", "not-an-email")
	form.Set("full_name", "Ivan")
	form.Set("password2", "other")
	form.Del("agree_to_terms")

	status, _, body := b.post("/register", form)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "ФИО может содержать только кириллицу, пробелы и дефис.")
	assert.Contains(t, body, "Допустимы только латинские буквы")
	assert.Contains(t, body, "Введите корректный адрес электронной почты.")
	assert.Contains(t, body, "Пароли не совпадают.")
	assert.Contains(t, body, "Необходимо согласие на обработку персональных данных.")
	assert.Contains(t, body, `value="not-an-email"`)

	status, location, _ := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", location)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	mustStaff(t)
	b := newBrowser(t, ts)

	status, _, body := b.post("/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Неверный логин или пароль.")

	status, location, _ := b.post("/login", url.Values{"username": {"admin"}, "password": {"admin-pass"}})
	require.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)

	status, location, _ = b.get("/login")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)

	// A cross-site link cannot end the session.
	status, _, _ = b.get("/logout")
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = b.get("/admin")
	assert.Equal(t, http.StatusOK, status)

	status, location, _ = b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/", location)

	status, location, _ = b.get("/admin")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", location)
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t, func() {
		settingService := service.SettingService{}
		require.NoError(t, settingService.SetRateLimit(2))
	})
	b := newBrowser(t, ts)

	wrong := url.Values{"username": {"nobody"}, "password": {"x"}}
	for i := 0; i < 2; i++ {
		status, _, _ := b.post("/login", wrong)
		assert.Equal(t, http.StatusOK, status)
	}
	status, location, _ := b.post("/login", wrong)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", location)

	_, _, body := b.get("/login")
	assert.Contains(t, body, "Слишком много попыток.")
}

// postFrom posts form claiming to be forwarded for clientIP.
func (b *browser) postFrom(path, clientIP string, form url.Values) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", clientIP)
	req.Header.Set("X-Real-IP", clientIP)
	return b.do(req)
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	ts := newTestServer(t, func() {
		settingService := service.SettingService{}
		require.NoError(t, settingService.SetRateLimit(2))
	})
	b := newBrowser(t, ts)

	wrong := url.Values{"username": {"nobody"}, "password": {"x"}}
	limited := 0
	for i := 0; i < 10; i++ {
		status, _, _ := b.postFrom("/login", "203.0.113."+strconv.Itoa(i+1), wrong)
		if status == http.StatusSeeOther {
			limited++
		}
	}
	assert.Equal(t, 8, limited)
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	ts := newTestServer(t, func() {
		settingService := service.SettingService{}
		require.NoError(t, settingService.SetRateLimit(2))
		require.NoError(t, settingService.SetTrustedProxies([]string{"127.0.0.1"}))
	})
	b := newBrowser(t, ts)

	wrong := url.Values{"username": {"nobody"}, "password": {"x"}}
	for i := 0; i < 4; i++ {
		status, _, _ := b.postFrom("/login", "203.0.113."+strconv.Itoa(i+1), wrong)
		assert.Equal(t, http.StatusOK, status)
	}
	for i := 0; i < 2; i++ {
		status, _, _ := b.postFrom("/login", "198.51.100.7", wrong)
		assert.Equal(t, http.StatusOK, status)
	}
	status, location, _ := b.postFrom("/login", "198.51.100.7", wrong)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", location)
}

func TestStaffOnlyPages(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.post("/register", registration("ivan", "ivan@example.com"))

	status, location, _ := b.get("/admin")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	status, location, _ = b.post("/admin/categories", url.Values{"name": {"Кухня"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	categoryService := service.CategoryService{}
	categories, err := categoryService.GetCategories()
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestStaffFlagAppliesToOpenSessions(t *testing.T) {
	ts := newTestServer(t)
	mustStaff(t)
	userService := service.UserService{}

	staff := newBrowser(t, ts)
	staff.login("admin", "admin-pass")
	status, _, _ := staff.get("/admin")
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, userService.SetStaff("admin", false))

	status, location, _ := staff.get("/admin")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)
	status, location, _ = staff.post("/admin/categories", url.Values{"name": {"Кухня"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	categoryService := service.CategoryService{}
	categories, err := categoryService.GetCategories()
	require.NoError(t, err)
	assert.Empty(t, categories)

	// A grant works the same way.
	user := newBrowser(t, ts)
	user.post("/register", registration("ivan", "ivan@example.com"))
	require.NoError(t, userService.SetStaff("ivan", true))
	status, _, _ = user.get("/admin")
	assert.Equal(t, http.StatusOK, status)
}

func TestSessionOfDeletedUserIsCleared(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.post("/register", registration("ivan", "ivan@example.com"))
	status, _, _ := b.get("/dashboard")
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, database.GetDB().Where("login = ?", "ivan").Delete(&model.User{}).Error)

	status, location, _ := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", location)
	status, _, _ = b.get("/register")
	assert.Equal(t, http.StatusOK, status)
}

func TestRequestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	mustStaff(t)
	category := mustCategory(t, "Кухня")

	user := newBrowser(t, ts)
	user.post("/register", registration("ivan", "ivan@example.com"))

	fields := map[string]string{
		"title":       "Кухня-гостиная",
		"description": "Светлые тона",
		"category":    strconv.Itoa(category.Id),
	}

	// Oversized plan: the form comes back and nothing is stored.
	status, _, body := user.postMultipart("/requests/new", fields, "plan_image", "plan.png", storage.MaxImageSize+1)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Размер файла не должен превышать 2 МБ.")
	assert.Contains(t, body, `value="Кухня-гостиная"`)

	status, location, _ := user.postMultipart("/requests/new", fields, "plan_image", "plan.png", 512)
	require.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	requestService := service.RequestService{}
	requests, err := requestService.GetAllRequests("")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	request := requests[0]
	assert.Equal(t, model.StatusNew, request.Status)
	id := strconv.Itoa(request.Id)

	status, _, _ = user.get(storage.URL(request.PlanImage))
	assert.Equal(t, http.StatusOK, status)

	staff := newBrowser(t, ts)
	staff.login("admin", "admin-pass")

	// Staff cannot file requests.
	status, location, _ = staff.get("/requests/new")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)

	status, _, body = staff.postMultipart("/admin/requests/"+id+"/status", map[string]string{"status": "in_progress"}, "", "", 0)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "нужен комментарий")

	status, _, body = staff.postMultipart("/admin/requests/"+id+"/status", map[string]string{"status": "completed"}, "", "", 0)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "нужно приложить изображение дизайна")

	status, location, _ = staff.postMultipart("/admin/requests/"+id+"/status",
		map[string]string{"status": "in_progress", "admin_comment": "Берём в работу"}, "", "", 0)
	require.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)
	_, _, body = staff.get("/admin")
	assert.Contains(t, body, "Статус заявки «Кухня-гостиная» изменён на «Принято в работу».")
	assert.Contains(t, body, service.AuditStatusChange)

	// A second change is refused on both GET and POST.
	status, location, _ = staff.get("/admin/requests/" + id + "/status")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)
	status, location, _ = staff.postMultipart("/admin/requests/"+id+"/status",
		map[string]string{"status": "completed"}, "design_image", "design.png", 128)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin", location)

	stored, err := requestService.GetRequest(request.Id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, stored.Status)
	assert.Empty(t, stored.DesignImage)

	// The owner can no longer withdraw it.
	status, location, _ = user.get("/requests/" + id + "/delete")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)
	_, _, body = user.get("/dashboard")
	assert.Contains(t, body, "нельзя удалить")

	_, _, body = user.get("/")
	assert.Contains(t, body, "Заявок в работе: 1")
}

func TestDeleteOwnRequestOnly(t *testing.T) {
	ts := newTestServer(t)
	category := mustCategory(t, "Ванная")

	owner := newBrowser(t, ts)
	owner.post("/register", registration("ivan", "ivan@example.com"))
	status, _, _ := owner.postMultipart("/requests/new", map[string]string{
		"title":       "Ванная",
		"description": "Плитка",
		"category":    strconv.Itoa(category.Id),
	}, "plan_image", "plan.jpg", 128)
	require.Equal(t, http.StatusSeeOther, status)

	requestService := service.RequestService{}
	requests, err := requestService.GetAllRequests("")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	id := strconv.Itoa(requests[0].Id)

	other := newBrowser(t, ts)
	other.post("/register", registration("petr", "petr@example.com"))
	status, _, _ = other.get("/requests/" + id + "/delete")
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = other.post("/requests/"+id+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, body := owner.get("/requests/" + id + "/delete")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Удалить заявку «Ванная»?")

	status, location, _ := owner.post("/requests/"+id+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/dashboard", location)

	status, _, _ = owner.get(storage.URL(requests[0].PlanImage))
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = owner.get("/requests/" + id + "/delete")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCategoryManagement(t *testing.T) {
	ts := newTestServer(t)
	mustStaff(t)
	staff := newBrowser(t, ts)
	staff.login("admin", "admin-pass")

	status, location, _ := staff.post("/admin/categories", url.Values{"name": {"Кухня"}})
	require.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/categories", location)

	status, _, body := staff.post("/admin/categories", url.Values{"name": {"КУХНЯ"}})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Категория с таким названием уже существует.")

	status, location, _ = staff.post("/admin/categories/abc/delete", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/categories", location)
	_, _, body = staff.get("/admin/categories")
	assert.Contains(t, body, "Некорректный идентификатор категории.")

	status, _, _ = staff.post("/admin/categories/999/delete", nil)
	assert.Equal(t, http.StatusNotFound, status)

	categoryService := service.CategoryService{}
	categories, err := categoryService.GetCategories()
	require.NoError(t, err)
	require.Len(t, categories, 1)

	status, _, _ = staff.post("/admin/categories/"+strconv.Itoa(categories[0].Id)+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	_, _, body = staff.get("/admin/categories")
	assert.Contains(t, body, "Категория «Кухня» и все её заявки удалены.")
}

func TestPublicPages(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	status, _, body := b.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Заявок в работе: 0")

	status, _, _ = b.get("/health")
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = b.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = b.get("/media/plan_img/missing.png")
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = b.get("/media/secret.db")
	assert.Equal(t, http.StatusNotFound, status)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	_, _, body = b.do(req)
	assert.Contains(t, body, "Log in")
}
