package core

import (
	"net/url"
	"slices"
	"strings"
)

// ValidationError maps field names to the problems found with them. JSONError
// renders it as a 422 with the fields in the error details.
type ValidationError url.Values

// Error lists the first problem of each field in field order.
func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, field := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(field)
		if msgs := e[field]; len(msgs) > 0 {
			b.WriteString(" ")
			b.WriteString(msgs[0])
		}
	}
	return b.String()
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add appends a problem for field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

// Get returns the first problem recorded for field.
func (e ValidationError) Get(field string) string {
	return url.Values(e).Get(field)
}

func (e ValidationError) Has(field string) bool {
	return len(e[field]) > 0
}

func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}
