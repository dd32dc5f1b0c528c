package ferry

import (
	"context"
	"errors"
	"testing"

	ferrors "github.com/zoobzio/ferry/errors"
)

func TestSentinels_Reexported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unsupported type", ferrors.UnsupportedType("chan int"), ErrUnsupportedType},
		{"invalid object id", ferrors.InvalidObjectID("x"), ErrInvalidObjectID},
		{"integer overflow", ferrors.IntegerOverflow("1"), ErrIntegerOverflow},
		{"document too large", ferrors.DocumentTooLarge(2, 1), ErrDocumentTooLarge},
		{"depth limit", ferrors.DepthLimitExceeded(100), ErrDepthLimitExceeded},
		{"invalid utf8", ferrors.InvalidUTF8(), ErrInvalidUTF8},
		{"circular reference", ferrors.CircularReference(), ErrCircularReference},
		{"type mismatch", ferrors.TypeMismatch("a", "b"), ErrTypeMismatch},
		{"field name", ferrors.InvalidFieldName("$x", "reserved"), ErrInvalidFieldName},
		{"collection name", ferrors.InvalidCollectionName("", "empty"), ErrInvalidCollectionName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
		})
	}
}

func TestTargetError(t *testing.T) {
	err := &TargetError{Type: "*string"}

	if !errors.Is(err, ErrInvalidTarget) {
		t.Error("TargetError should unwrap to ErrInvalidTarget")
	}
	want := "invalid unmarshal target: *string (want *bson.D, *bson.M or *any)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSurface_ReturnsErrorUnchanged(t *testing.T) {
	errs := []error{
		ferrors.DepthLimitExceeded(100).At(ferrors.StageExtract, []string{"a"}),
		ferrors.InvalidFieldName("$where", "reserved"),
		context.Canceled,
	}
	for _, err := range errs {
		if got := surface("write", err); got != err {
			t.Errorf("surface(%v) = %v, want the same error", err, got)
		}
	}
}
