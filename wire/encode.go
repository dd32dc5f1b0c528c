package wire

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/zoobzio/ferry/errors"
	"github.com/zoobzio/ferry/ir"
)

// Encode renders doc as a BSON document.
//
// Encode touches nothing but doc and lim and is safe to run concurrently
// with any other goroutine. Failures are returned, never panicked.
// Cancellation is observed at document and array boundaries.
func Encode(ctx context.Context, doc ir.Document, lim Limits) ([]byte, error) {
	lim = lim.normalized()

	size := PayloadSize(doc)
	if size > lim.MaxSize {
		return nil, errors.DocumentTooLarge(size, lim.MaxSize).At(errors.StageEncode, nil)
	}

	e := &encoder{ctx: ctx, lim: lim}
	out, err := e.document(make([]byte, 0, size), doc, 1)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type encoder struct {
	ctx  context.Context
	lim  Limits
	path []string
}

func (e *encoder) fail(err *errors.Error) error {
	return err.At(errors.StageEncode, e.path)
}

func (e *encoder) enter(depth int) error {
	if depth > e.lim.MaxDepth {
		return e.fail(errors.DepthLimitExceeded(e.lim.MaxDepth))
	}
	return e.ctx.Err()
}

func (e *encoder) document(dst []byte, doc ir.Document, depth int) ([]byte, error) {
	if err := e.enter(depth); err != nil {
		return nil, err
	}

	idx, dst := bsoncore.AppendDocumentStart(dst)
	dst, err := e.fields(dst, doc, depth)
	if err != nil {
		return nil, err
	}
	return e.end(dst, idx)
}

func (e *encoder) fields(dst []byte, doc ir.Document, depth int) ([]byte, error) {
	for _, f := range doc {
		if strings.IndexByte(f.Key, 0) >= 0 {
			return nil, e.fail(errors.TypeMismatch("key without NUL bytes", strconv.Quote(f.Key)))
		}
		var err error
		e.path = append(e.path, f.Key)
		dst, err = e.element(dst, f.Key, f.Value, depth)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (e *encoder) end(dst []byte, idx int32) ([]byte, error) {
	out, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, e.fail(errors.TypeMismatch("document", err.Error()))
	}
	return out, nil
}

func (e *encoder) array(dst []byte, key string, arr ir.Array, depth int) ([]byte, error) {
	if err := e.enter(depth); err != nil {
		return nil, err
	}

	idx, dst := bsoncore.AppendArrayElementStart(dst, key)
	for i, el := range arr {
		var err error
		k := strconv.Itoa(i)
		e.path = append(e.path, k)
		dst, err = e.element(dst, k, el, depth)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return nil, err
		}
	}
	out, err := bsoncore.AppendArrayEnd(dst, idx)
	if err != nil {
		return nil, e.fail(errors.TypeMismatch("array", err.Error()))
	}
	return out, nil
}

// element appends one key/value pair. depth is the level of the enclosing
// container.
func (e *encoder) element(dst []byte, key string, v ir.Value, depth int) ([]byte, error) {
	switch x := v.(type) {
	case ir.Null:
		return bsoncore.AppendNullElement(dst, key), nil
	case ir.Bool:
		return bsoncore.AppendBooleanElement(dst, key, bool(x)), nil
	case ir.Int:
		if FitsInt32(int64(x)) {
			return bsoncore.AppendInt32Element(dst, key, int32(x)), nil
		}
		return bsoncore.AppendInt64Element(dst, key, int64(x)), nil
	case ir.Double:
		return bsoncore.AppendDoubleElement(dst, key, float64(x)), nil
	case ir.String:
		return bsoncore.AppendStringElement(dst, key, string(x)), nil
	case ir.Binary:
		return bsoncore.AppendBinaryElement(dst, key, x.Subtype, x.Data), nil
	case ir.UUID:
		return bsoncore.AppendBinaryElement(dst, key, 0x04, x[:]), nil
	case ir.ObjectID:
		return bsoncore.AppendObjectIDElement(dst, key, primitive.ObjectID(x)), nil
	case ir.DateTime:
		return bsoncore.AppendDateTimeElement(dst, key, microsToMillis(int64(x))), nil
	case ir.Decimal:
		d, err := primitive.ParseDecimal128(string(x))
		if err != nil {
			return nil, e.fail(errors.TypeMismatch("decimal128", strconv.Quote(string(x))))
		}
		return bsoncore.AppendDecimal128Element(dst, key, d), nil
	case ir.Regex:
		return bsoncore.AppendRegexElement(dst, key, x.Pattern, x.Options), nil
	case ir.Array:
		return e.array(dst, key, x, depth+1)
	case ir.Document:
		if err := e.enter(depth + 1); err != nil {
			return nil, err
		}
		idx, out := bsoncore.AppendDocumentElementStart(dst, key)
		out, err := e.fields(out, x, depth+1)
		if err != nil {
			return nil, err
		}
		return e.end(out, idx)
	case nil:
		return nil, e.fail(errors.UnsupportedType("<nil>"))
	default:
		return nil, e.fail(errors.UnsupportedType(v.Kind().String()))
	}
}

// microsToMillis floors toward negative infinity so instants before the
// epoch round the same way as those after it.
func microsToMillis(us int64) int64 {
	ms := us / 1000
	if us%1000 < 0 {
		ms--
	}
	return ms
}
