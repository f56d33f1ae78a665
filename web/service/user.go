package service

import (
	"fmt"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/util/crypto"
	"github.com/designdesk/designdesk/web/entity"
)

type UserService struct{}

// Register validates form and creates a regular (non-staff) principal.
func (s *UserService) Register(form *entity.RegisterForm) (*model.User, error) {
	return s.create(form, false)
}

// CreateStaff creates a staff principal with the same rules as Register.
func (s *UserService) CreateStaff(form *entity.RegisterForm) (*model.User, error) {
	return s.create(form, true)
}

func (s *UserService) create(form *entity.RegisterForm, staff bool) (*model.User, error) {
	errs := form.Validate()
	if err := s.checkUnique(form, errs); err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	hash, err := crypto.HashPasswordAsBcrypt(form.Password1)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	firstName, lastName := form.Names()
	user := &model.User{
		Login:        form.Login,
		Email:        form.Email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsStaff:      staff,
	}

	db := database.GetDB()
	if err := db.Create(user).Error; err != nil {
		if database.IsDuplicate(err) {
			// Lost a race with a concurrent registration: report it like the pre-check would.
			raced := entity.FieldErrors{}
			if err := s.checkUnique(form, raced); err != nil {
				return nil, err
			}
			if raced.Empty() {
				raced.Add("username", "errors.loginTaken")
			}
			return nil, invalid(raced)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.Infof("user %q registered (staff=%v)", user.Login, staff)
	return user, nil
}

// checkUnique adds login/email uniqueness errors for fields that are otherwise valid.
func (s *UserService) checkUnique(form *entity.RegisterForm, errs entity.FieldErrors) error {
	if !errs.Has("username") {
		taken, err := s.exists("login", form.Login)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("username", "errors.loginTaken")
		}
	}
	if !errs.Has("email") {
		taken, err := s.exists("email", form.Email)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("email", "errors.emailTaken")
		}
	}
	return nil
}

func (s *UserService) exists(column, value string) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.User{}).Where(column+" = ?", value).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return count > 0, nil
}

// CheckUser returns the user matching the credentials, or nil.
func (s *UserService) CheckUser(login string, password string) *model.User {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(&model.User{}).
		Where("login = ?", login).
		First(user).
		Error
	if database.IsNotFound(err) {
		return nil
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil
	}

	if !crypto.CheckPasswordHash(user.PasswordHash, password) {
		return nil
	}
	return user
}

func (s *UserService) GetUser(id int) (*model.User, error) {
	user := &model.User{}
	err := database.GetDB().First(user, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetStaff grants or revokes the staff flag of the user with the given login.
func (s *UserService) SetStaff(login string, staff bool) error {
	res := database.GetDB().Model(&model.User{}).
		Where("login = ?", login).
		Update("is_staff", staff)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
