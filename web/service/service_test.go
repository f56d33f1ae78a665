package service

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/storage"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setup opens a fresh database and an in-memory image store for one test and
// returns the filesystem backing the store.
func setup(t *testing.T) billy.Filesystem {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "test.db")))
	fs := memfs.New()
	storage.InitStore(fs)
	t.Cleanup(func() {
		_ = database.CloseDB()
	})
	return fs
}

// beforeInsert runs fn right before gorm inserts a row into table, after any
// service-level pre-checks have passed.
func beforeInsert(t *testing.T, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	err := database.GetDB().Callback().Create().Before("gorm:create").
		Register("test:before_insert_"+table, func(tx *gorm.DB) {
			if tx.Statement.Table == table {
				fn(tx)
			}
		})
	require.NoError(t, err)
}

// countFiles returns the number of files stored in bucket.
func countFiles(t *testing.T, fs billy.Filesystem, bucket string) int {
	t.Helper()
	entries, err := fs.ReadDir(bucket)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
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

// stored reports whether key is readable from the image store.
func stored(key string) bool {
	f, _, err := storage.GetStore().Open(key)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// upload builds a multipart file header the way net/http parses one. The
// content is a PNG of size bytes.
func upload(t *testing.T, field, name string, size int) *multipart.FileHeader {
	t.Helper()
	return uploadBytes(t, field, name, pngOf(t, size))
}

func uploadBytes(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[field][0]
}

func registerForm(login, email string) *entity.RegisterForm {
	return &entity.RegisterForm{
		Login:     login,
		Email:     email,
		Password1: "secret-1",
		Password2: "secret-1",
		FullName:  "Иванов Иван Иванович",
		Consent:   "on",
	}
}

func mustUser(t *testing.T, login string) *model.User {
	t.Helper()
	userService := UserService{}
	user, err := userService.Register(registerForm(login, login+"@example.com"))
	require.NoError(t, err)
	return user
}

func mustCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	categoryService := CategoryService{}
	category, err := categoryService.AddCategory(&entity.CategoryForm{Name: name})
	require.NoError(t, err)
	return category
}

func mustRequest(t *testing.T, userID, categoryID int, title string) *model.DesignRequest {
	t.Helper()
	requestService := RequestService{}
	request, err := requestService.CreateRequest(userID, &entity.DesignRequestForm{
		Title:       title,
		Description: "описание",
		Category:    strconv.Itoa(categoryID),
		PlanImage:   upload(t, "plan_image", "plan.png", 128),
	})
	require.NoError(t, err)
	return request
}
