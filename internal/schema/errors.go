package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Constraint names reported in FieldError.Constraint.
const (
	ConstraintRequired      = "required"
	ConstraintType          = "type"
	ConstraintMaxLength     = "max_length"
	ConstraintDateFormat    = "date_format"
	ConstraintDateRange     = "date_range"
	ConstraintReference     = "reference"
	ConstraintUnknownField  = "unknown_field"
	ConstraintMinItems      = "min_items"
	ConstraintURL           = "url"
	ConstraintAllowedSchema = "allowed_schema"
)

// FieldError identifies one failed constraint. Field is a dotted path; list
// positions appear as numeric segments ("creator.0.name").
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError aggregates every field failure found while loading a document.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a failure.
func (e *ValidationError) Add(field, constraint, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Constraint: constraint, Message: message})
}

// Empty reports whether no failures were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Errors) == 0
}

// Has reports whether field failed with constraint.
func (e *ValidationError) Has(field, constraint string) bool {
	if e == nil {
		return false
	}
	for _, fe := range e.Errors {
		if fe.Field == field && fe.Constraint == constraint {
			return true
		}
	}
	return false
}

// Fields groups messages by field path, the shape stored in draft validity.
func (e *ValidationError) Fields() map[string][]string {
	if e.Empty() {
		return nil
	}
	out := make(map[string][]string)
	for _, fe := range e.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

func (e *ValidationError) sort() {
	sort.SliceStable(e.Errors, func(i, j int) bool { return e.Errors[i].Field < e.Errors[j].Field })
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
