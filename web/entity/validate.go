package entity

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/designdesk/designdesk/web/storage"

	"github.com/go-playground/validator/v10"
)

var (
	fullNamePattern = regexp.MustCompile(`^[а-яёА-ЯЁ\s\-]+$`)
	loginPattern    = regexp.MustCompile(`^[A-Za-z0-9@.+_\-]+$`)
)

var validate = newValidator()

// messageOverrides maps "<field>.<tag>" to a translation key. Anything not
// listed falls back to "errors.<tag>".
var messageOverrides = map[string]string{
	"agree_to_terms.required": "errors.consentRequired",
	"password2.eqfield":       "errors.passwordMismatch",
	"category.numeric":        "errors.categoryInvalid",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return fullNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fullname_parts", func(fl validator.FieldLevel) bool {
		return len(strings.Fields(fl.Field().String())) >= 2
	})
	_ = v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return loginPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("consent", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "on", "true", "1", "yes":
			return true
		}
		return false
	})
	return v
}

// validateStruct runs the struct tags of form and converts failures into FieldErrors.
func validateStruct(form any) FieldErrors {
	errs := FieldErrors{}
	err := validate.Struct(form)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(NonFieldErrors, "errors.invalidForm")
		return errs
	}
	for _, fe := range verrs {
		field := fe.Field()
		key, ok := messageOverrides[field+"."+fe.Tag()]
		if !ok {
			key = "errors." + fe.Tag()
		}
		errs.AddParam(field, key, fe.Param())
	}
	return errs
}

// imageErrors checks an uploaded image against the extension and size rules.
func imageErrors(errs FieldErrors, field, name string, size int64) {
	switch storage.CheckImage(name, size) {
	case nil:
	case storage.ErrImageTooLarge:
		errs.Add(field, "errors.imageTooLarge")
	case storage.ErrImageExtension:
		errs.Add(field, "errors.imageExtension")
	}
}
