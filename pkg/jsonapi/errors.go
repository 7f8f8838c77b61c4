package jsonapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrorBuilder assembles an Error step by step.
type ErrorBuilder struct {
	err Error
}

// NewError starts an error with the given HTTP status, machine code and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Status: strconv.Itoa(status), Code: code, Title: title}}
}

// Detail sets the human-readable explanation.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// Detailf is Detail with formatting.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	return b.Detail(fmt.Sprintf(format, args...))
}

// ID sets the occurrence identifier.
func (b *ErrorBuilder) ID(id string) *ErrorBuilder {
	b.err.ID = id
	return b
}

// Pointer points the error at a payload member, e.g. "/name".
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	b.err.Source = &ErrorSource{Pointer: pointer}
	return b
}

// Meta sets one meta member.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = Meta{}
	}
	b.err.Meta[key] = value
	return b
}

// Build returns the error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status, zero when unset.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

func (e Error) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return e.Title + ": " + e.Detail
}

// ErrBadRequest is a 400 for an unreadable request.
func ErrBadRequest(detail string) Error {
	return NewError(400, "bad_request", "Bad Request").Detail(detail).Build()
}

// ErrNotFound is a 404 for a missing resource.
func ErrNotFound(resourceType string) Error {
	return NewError(404, "not_found", "Not Found").
		Detailf("The requested %s was not found", resourceType).
		Build()
}

// ErrNotFoundWithID is a 404 for a missing record.
func ErrNotFoundWithID(resourceType, id string) Error {
	return NewError(404, "not_found", "Not Found").
		Detailf("The %s with ID '%s' was not found", resourceType, id).
		Build()
}

// ErrMethodNotAllowed is a 405 naming the requested and the allowed methods.
func ErrMethodNotAllowed(method string, allowed []string) Error {
	b := NewError(405, "method_not_allowed", "Method Not Allowed").Meta("requested_method", method)
	if len(allowed) == 0 {
		return b.Detailf("The %s method is not allowed for this resource", method).Build()
	}
	return b.Detailf("%s is not supported. Use one of: %s", method, strings.Join(allowed, ", ")).
		Meta("allowed_methods", allowed).
		Build()
}

// ErrValidation is a 422 for one message about one field.
func ErrValidation(field, message string) Error {
	return NewError(422, "validation_error", "Validation Failed").
		Detail(message).
		Pointer("/" + field).
		Build()
}

// ErrValidationMessages returns one 422 per message, fields sorted by name.
// Each error also carries the whole field to messages map in its meta.
func ErrValidationMessages(messages map[string][]string) []Error {
	fields := make([]string, 0, len(messages))
	for f := range messages {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var errs []Error
	for _, f := range fields {
		for _, msg := range messages[f] {
			e := ErrValidation(f, msg)
			e.Meta = Meta{"messages": messages}
			errs = append(errs, e)
		}
	}
	return errs
}

// ErrInternal is a 500 with a fresh id to look the failure up in the logs.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error", "Internal Server Error").
		ID(uuid.NewString()).
		Detail(detail).
		Build()
}

// ErrNotImplemented is a 501 for a declared but unhandled feature.
func ErrNotImplemented(feature string) Error {
	return NewError(501, "not_implemented", "Not Implemented").
		Detailf("%s is not implemented", feature).
		Build()
}
