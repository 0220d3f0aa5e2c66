package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/parallelhq/parallel/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names when they have one
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		validate.RegisterValidation("photourl", func(fl validator.FieldLevel) bool {
			return IsImageReference(fl.Field().String())
		})
		validate.RegisterValidation("agebracket", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			for _, b := range model.AgeBrackets {
				if b == v {
					return true
				}
			}
			return false
		})
		validate.RegisterValidation("sectionkey", func(fl validator.FieldLevel) bool {
			return model.IsSectionKey(fl.Field().String())
		})
		validate.RegisterValidation("analysisstatus", func(fl validator.FieldLevel) bool {
			return model.ValidAnalysisStatus(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and flattens failures into one
// readable error.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "photourl":
		return field + " must be a data:, http:// or https:// URL"
	case "agebracket":
		return field + " must be one of " + strings.Join(model.AgeBrackets, ", ")
	case "sectionkey":
		return field + " is not a known section"
	case "analysisstatus":
		return field + " is not a valid status"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// IsImageReference reports whether s is an inline data URI or an http(s) URL.
func IsImageReference(s string) bool {
	return strings.HasPrefix(s, "data:") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://")
}
