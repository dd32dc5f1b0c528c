package wire

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/zoobzio/ferry/errors"
	"github.com/zoobzio/ferry/ir"
)

// Decode parses a single BSON document.
//
// data must be owned by the caller for the duration of the call; the
// returned tree copies every byte it keeps and does not alias data.
// Type tags outside the interchange lattice are rejected with
// UnsupportedType, malformed framing with TypeMismatch.
func Decode(ctx context.Context, data []byte, lim Limits) (ir.Document, error) {
	lim = lim.normalized()

	if len(data) > lim.MaxSize {
		return nil, errors.DocumentTooLarge(len(data), lim.MaxSize).At(errors.StageDecode, nil)
	}

	d := &decoder{ctx: ctx, lim: lim}
	return d.document(data, 1)
}

type decoder struct {
	ctx  context.Context
	lim  Limits
	path []string
}

func (d *decoder) fail(err *errors.Error) error {
	return err.At(errors.StageDecode, d.path)
}

func (d *decoder) malformed(detail string) error {
	return d.fail(errors.TypeMismatch("BSON document", detail))
}

// elements splits a length-prefixed document into raw elements, checking
// the framing but not descending into nested documents.
func (d *decoder) elements(data []byte, depth int, visit func(t bsontype.Type, key string, val bsoncore.Value) error) error {
	if depth > d.lim.MaxDepth {
		return d.fail(errors.DepthLimitExceeded(d.lim.MaxDepth))
	}
	if err := d.ctx.Err(); err != nil {
		return err
	}

	length, rem, ok := bsoncore.ReadLength(data)
	if !ok || length < 5 || int(length) != len(data) {
		return d.malformed(fmt.Sprintf("%d bytes with invalid length prefix", len(data)))
	}
	if data[len(data)-1] != 0x00 {
		return d.malformed("missing document terminator")
	}
	rem = rem[:len(rem)-1]

	for len(rem) > 0 {
		t := bsontype.Type(rem[0])
		if !knownType(t) {
			return d.fail(errors.UnsupportedType(fmt.Sprintf("BSON 0x%02X", byte(t))))
		}
		end := bytes.IndexByte(rem[1:], 0x00)
		if end < 0 {
			return d.malformed("unterminated key")
		}
		key := string(rem[1 : 1+end])
		if !utf8.ValidString(key) {
			return d.fail(errors.InvalidUTF8())
		}

		val, next, ok := bsoncore.ReadValue(rem[end+2:], t)
		if !ok {
			return d.malformed(fmt.Sprintf("truncated %s value", t))
		}
		rem = next

		d.path = append(d.path, key)
		err := visit(t, key, val)
		d.path = d.path[:len(d.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) document(data []byte, depth int) (ir.Document, error) {
	doc := ir.Document{}
	err := d.elements(data, depth, func(t bsontype.Type, key string, val bsoncore.Value) error {
		v, err := d.value(t, val, depth)
		if err != nil {
			return err
		}
		doc = append(doc, ir.Field{Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *decoder) array(data []byte, depth int) (ir.Array, error) {
	arr := ir.Array{}
	err := d.elements(data, depth, func(t bsontype.Type, _ string, val bsoncore.Value) error {
		v, err := d.value(t, val, depth)
		if err != nil {
			return err
		}
		arr = append(arr, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// value converts one element payload. depth is the level of the enclosing
// container.
func (d *decoder) value(t bsontype.Type, val bsoncore.Value, depth int) (ir.Value, error) {
	switch t {
	case bsontype.Null:
		return ir.Null{}, nil

	case bsontype.Boolean:
		b, ok := val.BooleanOK()
		if !ok {
			return nil, d.malformed("invalid boolean")
		}
		return ir.Bool(b), nil

	case bsontype.Int32:
		n, ok := val.Int32OK()
		if !ok {
			return nil, d.malformed("invalid int32")
		}
		return ir.Int(n), nil

	case bsontype.Int64:
		n, ok := val.Int64OK()
		if !ok {
			return nil, d.malformed("invalid int64")
		}
		return ir.Int(n), nil

	case bsontype.Double:
		f, ok := val.DoubleOK()
		if !ok {
			return nil, d.malformed("invalid double")
		}
		return ir.Double(f), nil

	case bsontype.String:
		s, ok := val.StringValueOK()
		if !ok {
			return nil, d.malformed("invalid string")
		}
		if !utf8.ValidString(s) {
			return nil, d.fail(errors.InvalidUTF8())
		}
		return ir.String(s), nil

	case bsontype.Symbol:
		if d.lim.Strict {
			return nil, d.fail(errors.UnsupportedType("BSON symbol"))
		}
		s, ok := val.SymbolOK()
		if !ok {
			return nil, d.malformed("invalid symbol")
		}
		if !utf8.ValidString(s) {
			return nil, d.fail(errors.InvalidUTF8())
		}
		return ir.String(s), nil

	case bsontype.Undefined:
		if d.lim.Strict {
			return nil, d.fail(errors.UnsupportedType("BSON undefined"))
		}
		return ir.Null{}, nil

	case bsontype.Binary:
		subtype, data, ok := val.BinaryOK()
		if !ok {
			return nil, d.malformed("invalid binary")
		}
		if subtype == 0x04 {
			if len(data) != 16 {
				return nil, d.fail(errors.TypeMismatch("16-byte UUID", fmt.Sprintf("%d bytes", len(data))))
			}
			var u ir.UUID
			copy(u[:], data)
			return u, nil
		}
		return ir.Binary{Subtype: subtype, Data: bytes.Clone(data)}, nil

	case bsontype.ObjectID:
		oid, ok := val.ObjectIDOK()
		if !ok {
			return nil, d.malformed("invalid ObjectId")
		}
		return ir.ObjectID(oid), nil

	case bsontype.DateTime:
		ms, ok := val.DateTimeOK()
		if !ok {
			return nil, d.malformed("invalid datetime")
		}
		if ms > math.MaxInt64/1000 || ms < math.MinInt64/1000 {
			return nil, d.fail(errors.IntegerOverflow(strconv.FormatInt(ms, 10) + "000"))
		}
		return ir.DateTime(ms * 1000), nil

	case bsontype.Decimal128:
		dec, ok := val.Decimal128OK()
		if !ok {
			return nil, d.malformed("invalid decimal128")
		}
		return ir.Decimal(dec.String()), nil

	case bsontype.Regex:
		pattern, options, ok := val.RegexOK()
		if !ok {
			return nil, d.malformed("invalid regex")
		}
		if !utf8.ValidString(pattern) || !utf8.ValidString(options) {
			return nil, d.fail(errors.InvalidUTF8())
		}
		return ir.Regex{Pattern: pattern, Options: ir.RegexOptions(options)}, nil

	case bsontype.EmbeddedDocument:
		sub, ok := val.DocumentOK()
		if !ok {
			return nil, d.malformed("invalid embedded document")
		}
		return d.document(sub, depth+1)

	case bsontype.Array:
		sub, ok := val.ArrayOK()
		if !ok {
			return nil, d.malformed("invalid array")
		}
		return d.array(sub, depth+1)

	default:
		return nil, d.fail(errors.UnsupportedType("BSON " + t.String()))
	}
}

// knownType reports whether t is a BSON element type tag.
// Defined tags outside the interchange lattice are rejected later with a
// descriptive name.
func knownType(t bsontype.Type) bool {
	switch t {
	case bsontype.Double, bsontype.String, bsontype.EmbeddedDocument, bsontype.Array,
		bsontype.Binary, bsontype.Undefined, bsontype.ObjectID, bsontype.Boolean,
		bsontype.DateTime, bsontype.Null, bsontype.Regex, bsontype.DBPointer,
		bsontype.JavaScript, bsontype.Symbol, bsontype.CodeWithScope, bsontype.Int32,
		bsontype.Timestamp, bsontype.Int64, bsontype.Decimal128, bsontype.MinKey,
		bsontype.MaxKey:
		return true
	}
	return false
}
