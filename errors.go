package ferry

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zoobzio/ferry/errors"
)

// Conversion sentinels, re-exported so callers can classify failures with
// errors.Is without importing the errors subpackage.
var (
	ErrUnsupportedType    = errors.ErrUnsupportedType
	ErrInvalidObjectID    = errors.ErrInvalidObjectID
	ErrIntegerOverflow    = errors.ErrIntegerOverflow
	ErrDocumentTooLarge   = errors.ErrDocumentTooLarge
	ErrDepthLimitExceeded = errors.ErrDepthLimitExceeded
	ErrInvalidUTF8        = errors.ErrInvalidUTF8
	ErrCircularReference  = errors.ErrCircularReference
	ErrTypeMismatch       = errors.ErrTypeMismatch

	ErrInvalidFieldName      = errors.ErrInvalidFieldName
	ErrInvalidCollectionName = errors.ErrInvalidCollectionName
)

// ErrInvalidTarget indicates Unmarshal was given a destination it cannot fill.
var ErrInvalidTarget = stderrors.New("invalid unmarshal target")

// TargetError reports the unsupported destination type.
type TargetError struct {
	Type string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s: %s (want *bson.D, *bson.M or *any)", ErrInvalidTarget.Error(), e.Type)
}

func (e *TargetError) Unwrap() error {
	return ErrInvalidTarget
}

// surface is the single point where a conversion failure leaves the engine.
// It runs with the host lock held and only logs; the error value itself is
// returned unchanged so its text stays stable.
func surface(op string, err error) error {
	if ce, ok := errors.As(err); ok {
		Logger().Debug("conversion failed",
			zap.String("op", op),
			zap.String("kind", string(ce.Kind)),
			zap.String("stage", string(ce.Stage)),
			zap.String("path", ce.Location()),
			zap.Error(err),
		)
		return err
	}

	var ve *errors.ValidationError
	if stderrors.As(err, &ve) {
		Logger().Debug("name rejected",
			zap.String("op", op),
			zap.String("name", ve.Name),
			zap.String("reason", ve.Reason),
		)
		return err
	}

	Logger().Debug("operation aborted", zap.String("op", op), zap.Error(err))
	return err
}
