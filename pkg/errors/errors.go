package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to submitters in the "error" field.
const (
	CodeMissingParam      = "missing_param"
	CodeBadParam          = "bad_param"
	CodeDuplicate         = "duplicate"
	CodeUnregistered      = "unregistered"
	CodeServerError       = "server_error"
	CodeAlreadyRegistered = "already_registered"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodeRateLimited       = "rate_limited"
)

// Store-level sentinels. Adapters wrap them with %w.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrUnregistered = errors.New("device unregistered")
)

// MDSError is the payload reported back to providers and regulators.
type MDSError struct {
	Code        string      `json:"error"`
	Description string      `json:"error_description"`
	Details     interface{} `json:"error_details,omitempty"`
}

func (e *MDSError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDetails returns a copy of e carrying details.
func (e *MDSError) WithDetails(details interface{}) *MDSError {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps the error code to a response status.
func (e *MDSError) HTTPStatus() int {
	switch e.Code {
	case CodeMissingParam, CodeBadParam, CodeDuplicate, CodeUnregistered:
		return http.StatusBadRequest
	case CodeAlreadyRegistered:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(code, description string) *MDSError {
	return &MDSError{Code: code, Description: description}
}

func MissingParam(format string, args ...interface{}) *MDSError {
	return New(CodeMissingParam, fmt.Sprintf(format, args...))
}

func BadParam(format string, args ...interface{}) *MDSError {
	return New(CodeBadParam, fmt.Sprintf(format, args...))
}

func Duplicate(description string) *MDSError {
	return New(CodeDuplicate, description)
}

func Unregistered(description string) *MDSError {
	return New(CodeUnregistered, description)
}

func ServerError(description string) *MDSError {
	return New(CodeServerError, description)
}

// AsMDSError converts any error to an MDSError, defaulting to server_error.
func AsMDSError(err error) *MDSError {
	if err == nil {
		return nil
	}
	var mdsErr *MDSError
	if errors.As(err, &mdsErr) {
		return mdsErr
	}
	return ServerError(err.Error())
}
