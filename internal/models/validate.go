package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation — общий маркер ошибок валидации для errors.Is.
var ErrValidation = errors.New("invalid data")

// ValidationError — ошибка валидации с детализацией по полям (json-путь -> сообщение).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}

	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Мобильный номер: необязательный "+", цифры, пробелы и дефисы.
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Пути полей в ошибках — по json-тегам.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})

	return v
}

// ValidateProfile проверяет профиль перед записью.
func ValidateProfile(p Profile) error {
	return check(p)
}

// ValidateProfileUpdate проверяет заданные поля частичного апдейта.
func ValidateProfileUpdate(u ProfileUpdate) error {
	if u.Empty() {
		return &ValidationError{Fields: map[string]string{"body": "no fields to update"}}
	}

	return check(u)
}

// ValidateStoredProfile проверяет профиль, прочитанный из хранилища.
// В отличие от записи, требует ID.
func ValidateStoredProfile(p Profile) error {
	err := check(p)
	if strings.TrimSpace(p.ID) != "" {
		return err
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		ve = &ValidationError{Fields: map[string]string{}}
	}
	ve.Fields["id"] = "is required"

	return ve
}

// ValidateStatus проверяет статус перед записью.
func ValidateStatus(s ProfileStatus) error {
	return check(s)
}

// ValidateStatusUpdate проверяет частичный апдейт статуса.
func ValidateStatusUpdate(u StatusUpdate) error {
	if u.Empty() {
		return &ValidationError{Fields: map[string]string{"body": "no fields to update"}}
	}

	return check(u)
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		// Namespace начинается с имени типа: "Profile.age".
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		if _, seen := out.Fields[path]; !seen {
			out.Fields[path] = message(fe)
		}
	}

	return out
}

func message(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch fe.Tag() {
	case "notblank", "required":
		return "is required"
	case "min":
		if numeric {
			return "must be at least " + fe.Param()
		}
		return "must be at least " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "phone":
		return "must contain only digits, spaces, dashes and a leading +"
	default:
		return "is invalid"
	}
}
