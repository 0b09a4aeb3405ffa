package services

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeParse             ErrorCode = "PARSE_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAmbiguous         ErrorCode = "AMBIGUOUS"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodePersistence       ErrorCode = "PERSISTENCE_ERROR"
	CodeDelivery          ErrorCode = "DELIVERY_ERROR"
)

// Error is a classified engine failure. For business codes Reason is the
// reply shown to the user; for infrastructure codes it is only logged.
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
		return fmt.Sprintf("engine: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("engine: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Recoverable reports failures that end as a corrective chat reply
func (e *Error) Recoverable() bool {
	switch e.Code {
	case CodeParse, CodeNotFound, CodeAmbiguous, CodeInsufficientStock:
		return true
	}
	return false
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func persistenceError(op string, err error) *Error {
	return newError(CodePersistence, op, err)
}

// userReply extracts the reply of a recoverable failure
func userReply(err error) (string, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) && engineErr.Recoverable() {
		return engineErr.Reason, true
	}
	return "", false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.Code == code
}
