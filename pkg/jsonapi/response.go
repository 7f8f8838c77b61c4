package jsonapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

func write(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteJSON writes v as a plain JSON body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	write(w, status, JSONContentType, v)
}

// WriteError writes an error document. The response status is the status
// of the first error; without errors it is a bare 500.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal("")}
	}

	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	write(w, status, ContentType, NewErrorDocument(errs...))
}

// WriteNotFound writes a 404 for resourceType.
func WriteNotFound(w http.ResponseWriter, resourceType string) {
	WriteError(w, ErrNotFound(resourceType))
}

// WriteMethodNotAllowed writes a 405 and advertises the allowed methods in
// the Allow header.
func WriteMethodNotAllowed(w http.ResponseWriter, method string, allowed []string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	WriteError(w, ErrMethodNotAllowed(method, allowed))
}

// WriteValidationErrors writes a 422 with one error per field message.
func WriteValidationErrors(w http.ResponseWriter, messages map[string][]string) {
	WriteError(w, ErrValidationMessages(messages)...)
}

// WriteNotImplemented writes a 501.
func WriteNotImplemented(w http.ResponseWriter, feature string) {
	WriteError(w, ErrNotImplemented(feature))
}
