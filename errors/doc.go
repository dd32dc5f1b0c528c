// Package errors defines the conversion error taxonomy.
//
// Every conversion failure is an *Error with one of eight Kinds:
//
//	unsupported_type  invalid_object_id  integer_overflow  document_too_large
//	depth_limit_exceeded  invalid_utf8  circular_reference  type_mismatch
//
// Message text is fixed per Kind and does not change with the Stage that
// detected the failure, so callers may match on it:
//
//	document nesting exceeds the maximum depth of 100
//
// Classify with errors.Is against the package sentinels:
//
//	if errors.Is(err, ferryerrors.ErrDepthLimitExceeded) { ... }
//
// Names rejected by the security ruleset are reported as *ValidationError,
// which wraps ErrInvalidFieldName or ErrInvalidCollectionName.
package errors
