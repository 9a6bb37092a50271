// Package errs defines the error kinds shared by the server stores and the client SDK.
package errs

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// Error is an internal failure wrapped with the call stack where it was raised.
type Error struct {
	Message string
	Wrapped error
	Stack   CallStack
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

type CallStack []StackFrame

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// New wraps an unexpected error (usually from the database or storage) with a message and stack.
func New(wrapped error, format string, args ...interface{}) error {
	trace := stack.Trace().TrimRuntime()
	frames := make(CallStack, len(trace))
	for i, call := range trace {
		f := call.Frame()
		frames[i] = StackFrame{File: f.File, Line: f.Line, Function: f.Function}
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   frames,
	}
}

// ValidationError reports malformed or oversized input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing or soft-deleted entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// AuthorizationError reports an actor lacking ownership or the admin capability.
type AuthorizationError struct {
	ActorID uint
	Action  string
}

func (e *AuthorizationError) Error() string {
	return "not allowed to " + e.Action
}

func Forbidden(actorID uint, action string) error {
	return &AuthorizationError{ActorID: actorID, Action: action}
}

// ConflictError reports an operation against a terminal (deleted) entity.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// TransportError reports an upload or network failure. It is never retried automatically.
type TransportError struct {
	FileName string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	msg := "upload failed"
	if e.FileName != "" {
		msg = fmt.Sprintf("upload of %q failed", e.FileName)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PartialSaveError reports that the parent entity was saved but committing its attachments
// failed. Saved holds whatever the parent write returned so the caller can retry only the
// attachment step.
type PartialSaveError struct {
	Saved interface{}
	Err   error
}

func (e *PartialSaveError) Error() string {
	return "content saved but attachments were not: " + e.Err.Error()
}

func (e *PartialSaveError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsPartialSave(err error) bool {
	var target *PartialSaveError
	return errors.As(err, &target)
}
