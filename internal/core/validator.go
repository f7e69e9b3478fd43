package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"contentpilot/internal/types"
)

// ValidationError describes a single field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field errors. Handlers that only need a pass/fail
// answer use ValidateStruct instead.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no field errors were recorded.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain tags used by the
// request structs:
//
//	platform      a known types.Platform
//	content_type  a known types.ContentType
//	velocity      low, medium or high
//	is_timezone   an IANA zone name accepted by time.LoadLocation
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags. Field names
// in errors use the json tag so they match the request body.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return types.Platform(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		return types.ContentType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("velocity", func(fl validator.FieldLevel) bool {
		return types.VelocityLevel(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("is_timezone", func(fl validator.FieldLevel) bool {
		tz := fl.Field().String()
		if tz == "" {
			return true
		}
		_, err := time.LoadLocation(tz)
		return err == nil
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns a *types.AppError whose code comes
// from the first failing field. All failures are listed under the
// "validation_errors" detail key.
func (v *Validator) ValidateStruct(s any) error {
	result := v.collect(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructResult validates s and returns every failing field.
func (v *Validator) ValidateStructResult(s any) ValidationResult {
	return v.collect(s)
}

func (v *Validator) collect(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidField),
			Message: "request could not be validated",
		}}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return ValidationResult{Errors: out}
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "platform":
		return string(types.ErrCodeValidationInvalidPlatform)
	case "content_type":
		return string(types.ErrCodeValidationInvalidContent)
	case "velocity":
		return string(types.ErrCodeValidationVelocity)
	case "is_timezone":
		return string(types.ErrCodeValidationInvalidTimezone)
	case "unique":
		return string(types.ErrCodeValidationDuplicate)
	case "min", "max", "gt", "gte", "lt", "lte":
		return string(types.ErrCodeValidationInvalidCount)
	default:
		return string(types.ErrCodeValidationInvalidField)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "platform":
		return fmt.Sprintf("%s: unknown platform %q", fe.Field(), fe.Value())
	case "content_type":
		return fmt.Sprintf("%s: unknown content type %q", fe.Field(), fe.Value())
	case "velocity":
		return fmt.Sprintf("%s must be one of low, medium, high", fe.Field())
	case "is_timezone":
		return fmt.Sprintf("%s: unknown timezone %q", fe.Field(), fe.Value())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
