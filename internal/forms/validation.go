package forms

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/message"
)

// FieldErrors maps a JSON field name to a localized error message.
type FieldErrors map[string]string

// phonePattern accepts international and local formats: digits with optional
// leading +, spaces, dashes, dots and parentheses.
var phonePattern = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)

// Global validator instance (reused across all forms)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so errors line up with the submitted fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		digits := 0
		for _, r := range value {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return phonePattern.MatchString(value) && digits >= 7
	})

	return v
}

// Validate checks form and returns field errors localized with p, or nil when
// the form is valid.
func Validate(form any, p *message.Printer) FieldErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return FieldErrors{"_form": p.Sprintf(i18n.MsgInvalid)}
	}

	fields := make(FieldErrors, len(ve))
	for _, fe := range ve {
		if _, exists := fields[fe.Field()]; exists {
			continue
		}
		fields[fe.Field()] = formatFieldError(fe, p)
	}
	return fields
}

// formatFieldError converts a validator FieldError to a user-facing message.
func formatFieldError(fe validator.FieldError, p *message.Printer) string {
	switch fe.Tag() {
	case "required":
		return p.Sprintf(i18n.MsgRequired)
	case "email":
		return p.Sprintf(i18n.MsgEmail)
	case "min":
		return p.Sprintf(i18n.MsgMinLength, fe.Param())
	case "max":
		return p.Sprintf(i18n.MsgMaxLength, fe.Param())
	case "phone":
		return p.Sprintf(i18n.MsgPhone)
	case "oneof":
		return p.Sprintf(i18n.MsgOneOf, fe.Param())
	default:
		return p.Sprintf(i18n.MsgInvalid)
	}
}
