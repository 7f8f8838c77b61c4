package schema

import (
	"sort"
	"strings"
)

// Field messages reported by Load.
const (
	MsgRequired = "Missing data for required field."
	MsgNull     = "Field may not be null."
)

// ValidationError reports every field that failed to load, keyed by
// external field name.
type ValidationError struct {
	Messages map[string][]string
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Messages == nil {
		e.Messages = make(map[string][]string)
	}
	e.Messages[field] = append(e.Messages[field], message)
}

// HasErrors reports whether any message was added.
func (e *ValidationError) HasErrors() bool {
	return len(e.Messages) > 0
}

// Fields returns the failing field names in sorted order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Messages))
	for f := range e.Messages {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+strings.Join(e.Messages[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
