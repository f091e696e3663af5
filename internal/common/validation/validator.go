// Package validation validates request structs with go-playground/validator
// and reports failures as validation AppErrors.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sigauth/internal/common/errors"
)

// MaxAppIDLength bounds appids accepted by the admin API.
const MaxAppIDLength = 128

// FieldError describes a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Validator validates structs using `validate` tags. Field names in
// messages come from the json tag.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the sigauth rules registered.
func New() *Validator {
	v := validator.New()
	registerValidators(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates s and returns a validation AppError listing every failure.
func (v *Validator) Struct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return format(err)
	}
	return nil
}

// Var validates a single value against tag.
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return format(err)
	}
	return nil
}

// Fields returns the individual failures of s, nil when it is valid.
func (v *Validator) Fields(s interface{}) []FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return extract(err)
}

func format(err error) error {
	fields := extract(err)
	if len(fields) == 1 {
		return errors.ValidationError(fields[0].Message)
	}

	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Message
	}
	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func extract(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return fields
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", name, fe.Param())
	case "appid":
		return fmt.Sprintf("%s must not contain ':', '&', '=' or whitespace", name)
	case "http_method":
		return fmt.Sprintf("%s must be a valid HTTP method", name)
	default:
		return fmt.Sprintf("%s failed validation: %s", name, fe.Tag())
	}
}

func registerValidators(v *validator.Validate) {
	// appids are header fields, so the header delimiters are excluded
	v.RegisterValidation("appid", func(fl validator.FieldLevel) bool {
		appid := fl.Field().String()
		return !strings.ContainsAny(appid, ":&= \t\r\n")
	})

	v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
		case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
			return true
		}
		return false
	})
}

var globalValidator = New()

// ValidateStruct validates a struct using the global validator instance
func ValidateStruct(s interface{}) error {
	return globalValidator.Struct(s)
}

// ValidateVar validates a variable using the global validator instance
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.Var(field, tag)
}
