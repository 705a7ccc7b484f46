package core

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports request input rejected outside of struct validation (query params, orderings...).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown is raised when the process cannot keep serving requests.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// database/sql does not export its "database is closed" error.
const dbClosedMsg = "sql: database is closed"

// TrapClosedDB turns the error of an operation on a closed database into a shutdown error;
// any other error is returned untouched.
func TrapClosedDB(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(errors.Cause(err).Error(), dbClosedMsg) {
		return NewShutdownError(dbClosedMsg)
	}
	return err
}
