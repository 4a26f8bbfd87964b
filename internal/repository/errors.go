package repository

import (
	"errors"
	"fmt"
)

// Code classifies a backend failure independently of the backend.
type Code string

const (
	CodePermissionDenied  Code = "permission-denied"
	CodeNotFound          Code = "not-found"
	CodeAlreadyExists     Code = "already-exists"
	CodeInvalidArgument   Code = "invalid-argument"
	CodeUnavailable       Code = "unavailable"
	CodeDeadlineExceeded  Code = "deadline-exceeded"
	CodeResourceExhausted Code = "resource-exhausted"
	CodeUnknown           Code = "unknown"
)

var userMessages = map[Code]string{
	CodePermissionDenied:  "You don't have permission to perform this action.",
	CodeNotFound:          "The requested record was not found.",
	CodeUnavailable:       "The service is temporarily unavailable. Please try again later.",
	CodeDeadlineExceeded:  "The request timed out. Please try again.",
	CodeResourceExhausted: "Too many requests. Please wait a moment and try again.",
}

const defaultUserMessage = "An unexpected error occurred. Please try again."

// Error is returned by every DocumentStore and Collection operation.
type Error struct {
	Code       Code
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *Error) Error() string {
	target := e.Collection
	if e.ID != "" {
		target += "/" + e.ID
	}
	if e.Err != nil {
		return fmt.Sprintf("repository: %s %s: %s: %v", e.Op, target, e.Code, e.Err)
	}
	return fmt.Sprintf("repository: %s %s: %s", e.Op, target, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a code.
func NewError(code Code, op, collection, id string, err error) error {
	return &Error{Code: code, Op: op, Collection: collection, ID: id, Err: err}
}

// NotFound is the canonical missing-document error.
func NotFound(op, collection, id string) error {
	return &Error{Code: CodeNotFound, Op: op, Collection: collection, ID: id}
}

// InvalidArgument reports a malformed query or document.
func InvalidArgument(op, collection string, format string, args ...interface{}) error {
	return &Error{Code: CodeInvalidArgument, Op: op, Collection: collection, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// UserMessage translates err into a sentence safe to show an end user.
func UserMessage(err error) string {
	if msg, ok := userMessages[CodeOf(err)]; ok {
		return msg
	}
	return defaultUserMessage
}
