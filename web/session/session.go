// Package session keeps the logged-in user id and one-shot notices in the
// signed session cookie. The principal itself is reloaded from the database on
// every request, so staff grants and revocations apply to open sessions.
package session

import (
	"encoding/gob"
	"errors"
	"net/http"

	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	loginUser   = "LOGIN_USER"
	noticeKey   = "NOTICES"
	CookieName  = "designdesk"
	principalID = "principal"
)

// Notice levels.
const (
	Success = "success"
	Error   = "error"
)

var userService service.UserService

// Principal is the current user as seen by the web layer.
type Principal struct {
	Id      int
	Login   string
	Name    string
	IsStaff bool
}

// Notice is a message shown once on the next rendered page. Key is a
// translation key and Params its template parameters in "name==value" form.
type Notice struct {
	Level  string
	Key    string
	Params []string
}

func init() {
	gob.Register(Notice{})
}

// Options returns the cookie options used for every session write.
func Options(maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func newPrincipal(user *model.User) *Principal {
	return &Principal{
		Id:      user.Id,
		Login:   user.Login,
		Name:    user.FullName(),
		IsStaff: user.IsStaff,
	}
}

// SetLoginUser stores the user id in the session.
func SetLoginUser(c *gin.Context, user *model.User) error {
	c.Set(principalID, newPrincipal(user))
	s := sessions.Default(c)
	s.Set(loginUser, user.Id)
	return s.Save()
}

func SetMaxAge(c *gin.Context, maxAge int) error {
	s := sessions.Default(c)
	s.Options(Options(maxAge))
	return s.Save()
}

// GetLoginUser returns the principal of the current request, or nil. The user
// is loaded once per request and cached on the gin context. A session whose
// user no longer exists is cleared.
func GetLoginUser(c *gin.Context) *Principal {
	if v, ok := c.Get(principalID); ok {
		p, _ := v.(*Principal)
		return p
	}
	s := sessions.Default(c)
	id, ok := s.Get(loginUser).(int)
	if !ok {
		c.Set(principalID, (*Principal)(nil))
		return nil
	}
	user, err := userService.GetUser(id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Warningf("session user %d no longer exists", id)
			if err := ClearSession(c); err != nil {
				logger.Warning("Unable to save session after clearing:", err)
			}
		} else {
			logger.Warning("load session user:", err)
		}
		c.Set(principalID, (*Principal)(nil))
		return nil
	}
	p := newPrincipal(user)
	c.Set(principalID, p)
	return p
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}

func IsStaff(c *gin.Context) bool {
	user := GetLoginUser(c)
	return user != nil && user.IsStaff
}

func ClearSession(c *gin.Context) error {
	c.Set(principalID, (*Principal)(nil))
	s := sessions.Default(c)
	s.Clear()
	s.Options(Options(-1))
	return s.Save()
}

// AddNotice queues a notice for the next rendered page.
func AddNotice(c *gin.Context, level, key string, params ...string) {
	s := sessions.Default(c)
	s.AddFlash(Notice{Level: level, Key: key, Params: params}, noticeKey)
	_ = s.Save()
}

// PopNotices returns and removes the queued notices.
func PopNotices(c *gin.Context) []Notice {
	s := sessions.Default(c)
	flashes := s.Flashes(noticeKey)
	if len(flashes) == 0 {
		return nil
	}
	_ = s.Save()
	notices := make([]Notice, 0, len(flashes))
	for _, f := range flashes {
		if n, ok := f.(Notice); ok {
			notices = append(notices, n)
		}
	}
	return notices
}
