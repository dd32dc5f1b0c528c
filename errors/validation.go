package errors

import (
	"errors"
	"fmt"
)

// Security rule violations. These are not conversion failures and are kept
// outside the Kind taxonomy.
var (
	ErrInvalidFieldName      = errors.New("invalid field name")
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// ValidationError reports a name rejected by the security ruleset.
type ValidationError struct {
	Err    error    // ErrInvalidFieldName or ErrInvalidCollectionName
	Name   string   // offending name
	Reason string   // rule that rejected it
	Path   []string // location of the field, when known
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Err.Error(), e.Name, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// InvalidFieldName creates a ValidationError for a document key.
func InvalidFieldName(name, reason string) *ValidationError {
	return &ValidationError{Err: ErrInvalidFieldName, Name: name, Reason: reason}
}

// InvalidCollectionName creates a ValidationError for a collection name.
func InvalidCollectionName(name, reason string) *ValidationError {
	return &ValidationError{Err: ErrInvalidCollectionName, Name: name, Reason: reason}
}
