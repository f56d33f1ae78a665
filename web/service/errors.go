package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/designdesk/designdesk/web/entity"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrStatusLocked = errors.New("request status can no longer change")
)

// ValidationError carries every field error found while validating a form.
// Nothing has been written when it is returned.
type ValidationError struct {
	Fields entity.FieldErrors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		keys := make([]string, 0, len(msgs))
		for _, m := range msgs {
			keys = append(keys, m.Key)
		}
		fields = append(fields, field+": "+strings.Join(keys, ","))
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, "; "))
}

func invalid(errs entity.FieldErrors) error {
	return &ValidationError{Fields: errs}
}

// FieldErrorsOf returns the field errors carried by err, or nil.
func FieldErrorsOf(err error) entity.FieldErrors {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
