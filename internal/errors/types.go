// Package errors defines the structured error type shared by the tracker,
// the store adapters and the discovery layer, plus the notifier seam used to
// report store outages to an external alerting sink.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConnectivity ErrorType = "connectivity"
	ErrorTypeStore        ErrorType = "store"
	ErrorTypeDiscovery    ErrorType = "discovery"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeInternal     ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeInvalidEvent      = "ERR_INVALID_EVENT"
	ErrCodeInvalidIdentifier = "ERR_INVALID_IDENTIFIER"
	ErrCodeStoreRequired     = "ERR_STORE_REQUIRED"
	ErrCodeStoreUnavailable  = "ERR_STORE_UNAVAILABLE"
	ErrCodeStoreFailed       = "ERR_STORE_FAILED"
	ErrCodeDiscoveryFailed   = "ERR_DISCOVERY_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeNotConfigured     = "ERR_NOT_CONFIGURED"
	ErrCodeLookupMismatch    = "ERR_LOOKUP_MISMATCH"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// TallyError is a structured error type with context.
type TallyError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	Template  string
}

// Error implements the error interface.
func (e *TallyError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TallyError) Unwrap() error {
	return e.Cause
}

// Is matches another TallyError with the same type and code.
func (e *TallyError) Is(target error) bool {
	var t *TallyError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TallyError) WithContext(key string, value interface{}) *TallyError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *TallyError) WithComponent(component string) *TallyError {
	e.Component = component

	return e
}

// WithTemplate records the template identifier the error relates to.
func (e *TallyError) WithTemplate(id string) *TallyError {
	e.Template = id

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConnectivityError creates an error for an unreachable store.
func NewConnectivityError(message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeConnectivity,
		Code:    ErrCodeStoreUnavailable,
		Message: message,
		Cause:   cause,
	}
}

// NewStoreError creates an error for a store that answered with a failure.
func NewStoreError(message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeStore,
		Code:    ErrCodeStoreFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewDiscoveryError creates a template discovery error.
func NewDiscoveryError(message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeDiscovery,
		Code:    ErrCodeDiscoveryFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TallyError {
	return &TallyError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap wraps err with a type and code, keeping the component and template
// of an existing TallyError.
func Wrap(err error, errType ErrorType, code, message string) *TallyError {
	if err == nil {
		return nil
	}

	wrapped := &TallyError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}

	var te *TallyError
	if errors.As(err, &te) {
		wrapped.Component = te.Component
		wrapped.Template = te.Template
		wrapped.Context = te.Context
	}

	return wrapped
}

func hasType(err error, errType ErrorType) bool {
	var te *TallyError
	if errors.As(err, &te) {
		return te.Type == errType
	}

	return false
}

// IsConnectivityError reports whether err means the store could not be reached.
func IsConnectivityError(err error) bool {
	return hasType(err, ErrorTypeConnectivity)
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsDiscoveryError reports whether err came from template discovery.
func IsDiscoveryError(err error) bool {
	return hasType(err, ErrorTypeDiscovery)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// ErrNotConfigured is returned by queries issued before a store was configured.
var ErrNotConfigured = NewInternalError(ErrCodeNotConfigured, "tracker is not configured", nil)

// ErrInvalidIdentifier creates an error for a template path that cannot be normalized.
func ErrInvalidIdentifier(path string, cause error) *TallyError {
	return NewValidationError(ErrCodeInvalidIdentifier, "invalid template path: "+path, cause)
}

// ErrInvalidEvent creates an error for a malformed render event.
func ErrInvalidEvent(cause error) *TallyError {
	return NewValidationError(ErrCodeInvalidEvent, "invalid render event", cause)
}

// GetErrorContext flattens a TallyError into log fields.
func GetErrorContext(err error) map[string]interface{} {
	var te *TallyError
	if errors.As(err, &te) {
		context := make(map[string]interface{}, len(te.Context)+4)
		for k, v := range te.Context {
			context[k] = v
		}
		if te.Component != "" {
			context["component"] = te.Component
		}
		if te.Template != "" {
			context["template"] = te.Template
		}
		context["type"] = string(te.Type)
		context["code"] = te.Code
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// AsTallyError returns the first TallyError in err's chain.
func AsTallyError(err error) (*TallyError, bool) {
	var te *TallyError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ContextFields returns GetErrorContext as sorted key/value log fields.
func ContextFields(err error) []interface{} {
	context := GetErrorContext(err)

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, context[k])
	}
	return fields
}
