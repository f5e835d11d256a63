package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSource         ErrorType = "SOURCE"
	ErrTypeParsing        ErrorType = "PARSING"
	ErrTypeReconciliation ErrorType = "RECONCILIATION"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeStorage        ErrorType = "STORAGE"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeConfig         ErrorType = "CONFIG"
)

// Pipeline failure kinds, matched with errors.Is
var (
	ErrSourceNotFound          = errors.New("source not found")
	ErrSheetMissing            = errors.New("sheet missing")
	ErrUnreadableFormat        = errors.New("unreadable format")
	ErrMalformedHeader         = errors.New("malformed header")
	ErrUnparsableValue         = errors.New("unparsable value")
	ErrIrreconcilableDuplicate = errors.New("irreconcilable duplicate")
	ErrNotAccepted             = errors.New("result not accepted")
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Kind    error
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach both the kind and the cause
func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func newKindError(errType ErrorType, kind error, message string, cause error) *AppError {
	e := NewAppError(errType, message, cause)
	e.Kind = kind
	return e
}

// Source errors

// SourceNotFound reports a workbook path that does not resolve to a file
func SourceNotFound(path string, cause error) *AppError {
	return newKindError(ErrTypeSource, ErrSourceNotFound,
		fmt.Sprintf("workbook %s not found", path), cause).
		WithContext("path", path)
}

// SheetMissing reports a configured sheet that the workbook does not contain
func SheetMissing(path, sheet string, available []string) *AppError {
	return newKindError(ErrTypeSource, ErrSheetMissing,
		fmt.Sprintf("sheet %q not in workbook; available: %s", sheet, strings.Join(available, ", ")), nil).
		WithContext("path", path).
		WithContext("sheet", sheet)
}

// UnreadableFormat reports a file that cannot be parsed as a workbook
func UnreadableFormat(path string, cause error) *AppError {
	return newKindError(ErrTypeSource, ErrUnreadableFormat,
		fmt.Sprintf("%s is not a readable workbook", path), cause).
		WithContext("path", path)
}

// Parse errors

// MalformedHeader reports a header block that cannot be repaired
func MalformedHeader(sheet, reason string) *AppError {
	return newKindError(ErrTypeParsing, ErrMalformedHeader,
		fmt.Sprintf("sheet %q: %s", sheet, reason), nil).
		WithContext("sheet", sheet)
}

// UnparsableValue reports a cell that is neither numeric nor a missing sentinel
func UnparsableValue(sheet, cell, token string) *AppError {
	return newKindError(ErrTypeParsing, ErrUnparsableValue,
		fmt.Sprintf("sheet %q cell %s: cannot parse %q", sheet, cell, token), nil).
		WithContext("sheet", sheet).
		WithContext("cell", cell)
}

// Reconciliation errors

// IrreconcilableDuplicate reports two sheets disagreeing on a non-metric attribute
func IrreconcilableDuplicate(identity, attribute, firstSheet, secondSheet string) *AppError {
	return newKindError(ErrTypeReconciliation, ErrIrreconcilableDuplicate,
		fmt.Sprintf("%s: sheets %q and %q disagree on %s", identity, firstSheet, secondSheet, attribute), nil).
		WithContext("identity", identity).
		WithContext("sheets", []string{firstSheet, secondSheet})
}

// NotAccepted reports a persistence attempt for a non-clean run without override
func NotAccepted(runID, status string) *AppError {
	return newKindError(ErrTypeValidation, ErrNotAccepted,
		fmt.Sprintf("run %s finished %s; pass an explicit override to persist it", runID, status), nil).
		WithContext("run_id", runID)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}
