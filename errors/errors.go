package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the closed set of conversion failure categories.
type Kind string

const (
	KindUnsupportedType    Kind = "unsupported_type"
	KindInvalidObjectID    Kind = "invalid_object_id"
	KindIntegerOverflow    Kind = "integer_overflow"
	KindDocumentTooLarge   Kind = "document_too_large"
	KindDepthLimitExceeded Kind = "depth_limit_exceeded"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindCircularReference  Kind = "circular_reference"
	KindTypeMismatch       Kind = "type_mismatch"
)

// Stage indicates which stage detected the error. It never affects the message.
type Stage string

const (
	StageExtract     Stage = "extract"     // host -> IR, lock held
	StageEncode      Stage = "encode"      // IR -> BSON, lock released
	StageDecode      Stage = "decode"      // BSON -> IR, lock released
	StageMaterialize Stage = "materialize" // IR -> host, lock held
)

// Sentinels, one per Kind. Use errors.Is to classify.
var (
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrInvalidObjectID    = errors.New("invalid object id")
	ErrIntegerOverflow    = errors.New("integer overflow")
	ErrDocumentTooLarge   = errors.New("document too large")
	ErrDepthLimitExceeded = errors.New("depth limit exceeded")
	ErrInvalidUTF8        = errors.New("invalid utf-8")
	ErrCircularReference  = errors.New("circular reference")
	ErrTypeMismatch       = errors.New("type mismatch")
)

var sentinels = map[Kind]error{
	KindUnsupportedType:    ErrUnsupportedType,
	KindInvalidObjectID:    ErrInvalidObjectID,
	KindIntegerOverflow:    ErrIntegerOverflow,
	KindDocumentTooLarge:   ErrDocumentTooLarge,
	KindDepthLimitExceeded: ErrDepthLimitExceeded,
	KindInvalidUTF8:        ErrInvalidUTF8,
	KindCircularReference:  ErrCircularReference,
	KindTypeMismatch:       ErrTypeMismatch,
}

// Error is a conversion failure.
//
// The text returned by Error is part of the compatibility surface: it is a
// function of Kind and the message arguments only, so a condition detected
// during extraction and the same condition detected during decode read
// identically.
type Error struct {
	Kind  Kind
	Stage Stage
	Path  []string

	TypeName string // UnsupportedType
	Value    string // InvalidObjectId, IntegerOverflow
	Expected string // TypeMismatch
	Got      string // TypeMismatch
	Size     int    // DocumentTooLarge
	Limit    int    // DocumentTooLarge, DepthLimitExceeded
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedType:
		return fmt.Sprintf("cannot convert value of type %s to BSON", e.TypeName)
	case KindInvalidObjectID:
		return fmt.Sprintf("invalid ObjectId %q: must be a 24-character hex string or 12 bytes", e.Value)
	case KindIntegerOverflow:
		return fmt.Sprintf("integer %s overflows a signed 64-bit integer", e.Value)
	case KindDocumentTooLarge:
		return fmt.Sprintf("document size %d exceeds the maximum of %d bytes", e.Size, e.Limit)
	case KindDepthLimitExceeded:
		return fmt.Sprintf("document nesting exceeds the maximum depth of %d", e.Limit)
	case KindInvalidUTF8:
		return "string is not valid UTF-8"
	case KindCircularReference:
		return "circular reference detected"
	case KindTypeMismatch:
		return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the sentinel for the error's Kind.
func (e *Error) Unwrap() error {
	return sentinels[e.Kind]
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Location renders Path for diagnostics, e.g. "user.tags.3".
func (e *Error) Location() string {
	if len(e.Path) == 0 {
		return "<root>"
	}
	return strings.Join(e.Path, ".")
}

// At returns a copy of e stamped with stage and path.
func (e *Error) At(stage Stage, path []string) *Error {
	c := *e
	c.Stage = stage
	if path != nil {
		c.Path = append([]string(nil), path...)
	}
	return &c
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Convenience constructors. Stage and Path are attached with At.

func UnsupportedType(typeName string) *Error {
	return &Error{Kind: KindUnsupportedType, TypeName: typeName}
}

func InvalidObjectID(value string) *Error {
	return &Error{Kind: KindInvalidObjectID, Value: value}
}

func IntegerOverflow(value any) *Error {
	return &Error{Kind: KindIntegerOverflow, Value: fmt.Sprint(value)}
}

func DocumentTooLarge(size, limit int) *Error {
	return &Error{Kind: KindDocumentTooLarge, Size: size, Limit: limit}
}

func DepthLimitExceeded(limit int) *Error {
	return &Error{Kind: KindDepthLimitExceeded, Limit: limit}
}

func InvalidUTF8() *Error {
	return &Error{Kind: KindInvalidUTF8}
}

func CircularReference() *Error {
	return &Error{Kind: KindCircularReference}
}

func TypeMismatch(expected, got string) *Error {
	return &Error{Kind: KindTypeMismatch, Expected: expected, Got: got}
}
