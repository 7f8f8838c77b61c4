// Package jsonapi writes JSON:API error documents and plain JSON bodies.
// See https://jsonapi.org/format/#errors for the error object format.
package jsonapi

const (
	// ContentType is the JSON:API media type, used for error documents.
	ContentType = "application/vnd.api+json"

	// JSONContentType is the media type of plain JSON bodies.
	JSONContentType = "application/json"

	// Version is the JSON:API version declared in documents.
	Version = "1.1"
)

// Document is a top-level JSON:API error document.
type Document struct {
	Errors  []Error  `json:"errors,omitempty"`
	Meta    Meta     `json:"meta,omitempty"`
	JSONAPI *JSONAPI `json:"jsonapi,omitempty"`
}

// Error is a JSON:API error object. It implements error, so handlers can
// return it directly and keep its status.
type Error struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
	Meta   Meta         `json:"meta,omitempty"`
}

// ErrorSource locates the payload member an error refers to.
type ErrorSource struct {
	Pointer string `json:"pointer,omitempty"` // e.g. "/name"
}

// Meta holds non-standard members.
type Meta map[string]any

// JSONAPI describes the implementation.
type JSONAPI struct {
	Version string `json:"version"`
}

// NewErrorDocument wraps errs in a document.
func NewErrorDocument(errs ...Error) Document {
	return Document{
		Errors:  errs,
		JSONAPI: &JSONAPI{Version: Version},
	}
}
