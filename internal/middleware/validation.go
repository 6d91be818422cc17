package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected field of a request body.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fieldMessages = map[string]string{
	"required": "Field is required",
	"email":    "Invalid email format",
	"min":      "Value is too small",
	"max":      "Value is too large",
}

// RegisterValidation makes gin's validator report JSON field names. Call once
// before serving.
func RegisterValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return fld.Name
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	}
}

// ValidationErrors flattens a binding error into per-field messages. It
// returns nil when err is not a validation failure.
func ValidationErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := fieldMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
