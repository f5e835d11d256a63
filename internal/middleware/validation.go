package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tourismcli/internal/errors"
	"tourismcli/pkg/contracts/domain"
)

// RequestValidator checks decoded request bodies against struct tags
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator registers the custom tags used by request types:
// period (a YYYY-Qn label) and workbook (an .xlsx or .xlsm path).
func NewRequestValidator() *RequestValidator {
	v := validator.New()
	_ = v.RegisterValidation("period", isPeriod)
	_ = v.RegisterValidation("workbook", isWorkbook)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validator: v}
}

// ValidateStruct returns an APIError listing every rejected field
func (m *RequestValidator) ValidateStruct(v any) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.InvalidRequestWithError(err)
	}

	fields := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apperrors.NewValidationErrors(fields)
}

// ContentTypeValidator ensures requests with a body have an allowed content type
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			for _, ct := range contentTypes {
				if strings.EqualFold(mediaType, ct) {
					next.ServeHTTP(w, r)
					return
				}
			}

			problem := apperrors.NewProblemDetails(http.StatusUnsupportedMediaType, apperrors.TypeValidation,
				"Unsupported Media Type", fmt.Sprintf("Content-Type must be one of: %s", strings.Join(contentTypes, ", ")), r.URL.Path)
			render.Render(w, r, problem)
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field, param := err.Field(), err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "dive":
		return fmt.Sprintf("%s has an invalid element", field)
	case "period":
		return fmt.Sprintf("%s must be a quarter label such as 2024-Q1", field)
	case "workbook":
		return fmt.Sprintf("%s must be an .xlsx or .xlsm workbook path", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isPeriod(fl validator.FieldLevel) bool {
	_, err := domain.ParsePeriod(fl.Field().String())
	return err == nil
}

func isWorkbook(fl validator.FieldLevel) bool {
	switch strings.ToLower(filepath.Ext(fl.Field().String())) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}
