// Package ferry converts host value trees to BSON documents and back while
// holding the host's global execution lock for as little of the work as
// possible.
//
// # Stages
//
// Every call runs four stages in order:
//
//   - Extract: walk the host value, validate it, build an ir.Document (lock held)
//   - wire.Encode / wire.Decode: IR to BSON bytes or back (lock released)
//   - Materialize: rebuild host values from IR (lock held)
//
// The IR holds no reference to host memory and belongs to exactly one call,
// so nothing another goroutine can reach is touched while the lock is
// released. Engine.Write and Engine.Read sequence the stages and do the
// release/re-acquire:
//
//	lock := ferry.NewMutexLock()
//	eng, _ := ferry.New(ferry.WithLock(lock))
//
//	lock.Acquire()
//	data, err := eng.Write(ctx, bson.D{{Key: "name", Value: "Ada"}})
//	lock.Release()
//
// Callers without a host lock use the default NopLock.
//
// # Host Values
//
// Extraction accepts bson.D (ordered), bson.M and map[string]T (keys
// sorted), slices and arrays, structs (bson tags), pointers, the scalar Go
// kinds, and the wrapper types primitive.ObjectID, ObjectIDHex, time.Time,
// primitive.DateTime, primitive.Decimal128, uuid.UUID, primitive.Regex,
// *regexp.Regexp, primitive.Binary and *big.Int. Types may implement
// HostValuer to supply their own representation.
//
// Materialization always produces: nil, bool, int64, float64, string,
// []byte, primitive.Binary, bson.A, bson.D, primitive.ObjectID, time.Time
// (UTC), primitive.Decimal128, uuid.UUID, primitive.Regex.
//
// # Limits
//
// DefaultMaxDepth (100) and DefaultMaxSize (16 MiB) mirror the server's
// own limits and can be overridden per Engine. Both are enforced during
// extraction, before the lock is released.
//
// # Errors
//
// Conversion failures are *errors.Error values from the errors subpackage,
// classified by Kind; their text is stable. Field names rejected by the
// security Ruleset are *errors.ValidationError.
package ferry

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec.
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
