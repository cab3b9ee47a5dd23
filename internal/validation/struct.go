package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// link is an absolute http(s) URL or empty, which clears the field.
		validate.RegisterAlias("link", "http_url|len=0")
		// avatar additionally accepts a path served from our own uploads.
		validate.RegisterAlias("avatar", "http_url|startswith=/uploads/|len=0")
	})
	return validate
}

// Struct validates a request DTO by its `validate` tags and returns the first
// failure as a readable message.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
		}
		return fmt.Errorf("%s is too long (max %s)", fe.Field(), fe.Param())
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
		}
		return fmt.Errorf("%s is too short (min %s)", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Errorf("%s is out of range", fe.Field())
	case "http_url", "url", "link", "avatar":
		return fmt.Errorf("%s must be a valid URL", fe.Field())
	case "uuid", "uuid4":
		return fmt.Errorf("%s must be a valid id", fe.Field())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Normalize trims surrounding whitespace and folds text to Unicode NFC so
// visually identical titles and names compare equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
