package entity

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/designdesk/designdesk/database/model"
)

// RegisterForm is the self-service registration form.
type RegisterForm struct {
	Login     string `form:"username" validate:"required,max=150,login"`
	Email     string `form:"email" validate:"required,max=254,email"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
	FullName  string `form:"full_name" validate:"required,max=254,fullname,fullname_parts"`
	Consent   string `form:"agree_to_terms" validate:"required,consent"`
}

// Validate checks every field and returns all violations found. Uniqueness is
// checked by the user service against the store.
func (f *RegisterForm) Validate() FieldErrors {
	f.Login = strings.TrimSpace(f.Login)
	f.Email = strings.TrimSpace(f.Email)
	return validateStruct(f)
}

// Names derives the stored first and last name from the full name. The first
// token is the surname, the second the given name and a third (patronymic) is
// appended to the surname. Further tokens are dropped.
func (f *RegisterForm) Names() (firstName, lastName string) {
	return SplitFullName(f.FullName)
}

func SplitFullName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return "", ""
	}
	firstName = parts[1]
	lastName = parts[0]
	if len(parts) > 2 {
		lastName = parts[0] + " " + parts[2]
	}
	return firstName, lastName
}

type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

func (f *LoginForm) Validate() FieldErrors {
	f.Username = strings.TrimSpace(f.Username)
	return validateStruct(f)
}

// DesignRequestForm is submitted by a user to open a new request. There is no
// status field: new requests always start as model.StatusNew.
type DesignRequestForm struct {
	Title       string                `form:"title" validate:"required,max=200"`
	Description string                `form:"description" validate:"required"`
	Category    string                `form:"category" validate:"required,numeric"`
	PlanImage   *multipart.FileHeader `form:"-"`
}

// CategoryID returns the selected category id, or 0 when unset or malformed.
func (f *DesignRequestForm) CategoryID() int {
	id, err := strconv.Atoi(f.Category)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func (f *DesignRequestForm) Validate() FieldErrors {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	errs := validateStruct(f)
	if f.PlanImage == nil {
		errs.Add("plan_image", "errors.required")
	} else {
		imageErrors(errs, "plan_image", f.PlanImage.Filename, f.PlanImage.Size)
	}
	return errs
}

// StatusForm is submitted by staff to move a request out of "new".
type StatusForm struct {
	Status       string                `form:"status" validate:"required"`
	AdminComment string                `form:"admin_comment"`
	DesignImage  *multipart.FileHeader `form:"-"`
}

// Validate applies the transition table for current and the cross-field rules:
// completing a request needs a design image, taking it in progress needs a comment.
func (f *StatusForm) Validate(current model.Status) FieldErrors {
	f.AdminComment = strings.TrimSpace(f.AdminComment)
	errs := validateStruct(f)

	next, ok := model.ParseStatus(f.Status)
	if f.Status != "" && (!ok || !current.CanTransitionTo(next)) {
		errs.Add("status", "errors.statusInvalid")
	}
	if f.DesignImage != nil {
		imageErrors(errs, "design_image", f.DesignImage.Filename, f.DesignImage.Size)
	}
	switch next {
	case model.StatusCompleted:
		if f.DesignImage == nil {
			errs.Add("design_image", "errors.designImageRequired")
		}
	case model.StatusInProgress:
		if f.AdminComment == "" {
			errs.Add("admin_comment", "errors.commentRequired")
		}
	}
	return errs
}

// Target returns the requested status. Call it only after Validate succeeded.
func (f *StatusForm) Target() model.Status {
	st, _ := model.ParseStatus(f.Status)
	return st
}

type CategoryForm struct {
	Name string `form:"name" validate:"required,max=100"`
}

func (f *CategoryForm) Validate() FieldErrors {
	f.Name = strings.TrimSpace(f.Name)
	return validateStruct(f)
}
