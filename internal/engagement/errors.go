package engagement

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrorDataIntegrity ErrorCode = "DATA_INTEGRITY_ERROR"
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
)

// Error is returned for invalid policy configuration, records that violate the data model,
// and operator input the engine refuses to apply.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("engagement: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("engagement: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// ConfigurationError reports a policy that must be rejected when it is loaded.
func ConfigurationError(reason string, err error) *Error {
	return newError(ErrorConfiguration, reason, err)
}

// DataIntegrityError reports a record that cannot be evaluated.
func DataIntegrityError(reason string, err error) *Error {
	return newError(ErrorDataIntegrity, reason, err)
}

func IsConfigurationError(err error) bool {
	return hasCode(err, ErrorConfiguration)
}

func IsDataIntegrityError(err error) bool {
	return hasCode(err, ErrorDataIntegrity)
}

func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorInvalidInput)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
