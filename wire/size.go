package wire

import (
	"math"
	"strconv"

	"github.com/zoobzio/ferry/ir"
)

// Default limits mirror the server's own: 100 levels and 16 MiB.
const (
	DefaultMaxDepth = 100
	DefaultMaxSize  = 16 << 20
)

// Limits is the part of the conversion configuration the wire stage needs.
// It is a plain value and is copied into the lock-released region.
type Limits struct {
	MaxDepth int
	MaxSize  int
	// Strict rejects deprecated wire types (symbol, undefined) on decode
	// instead of mapping them to String and Null.
	Strict bool
}

func (l Limits) normalized() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxSize <= 0 {
		l.MaxSize = DefaultMaxSize
	}
	return l
}

// FitsInt32 reports whether n is encoded as a 32-bit integer.
func FitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// DocumentSize returns the encoded size of a document or array whose
// elements total elems bytes: length prefix plus terminator.
func DocumentSize(elems int) int {
	return 4 + elems + 1
}

// ElementSize returns the encoded size of one element: type tag, key
// cstring and payload.
func ElementSize(key string, payload int) int {
	return 1 + len(key) + 1 + payload
}

// IndexKeySize returns the length of the decimal key of array element i.
func IndexKeySize(i int) int {
	if i < 10 {
		return 1
	}
	return len(strconv.Itoa(i))
}

// PayloadSize returns the encoded size of v without its type tag and key.
func PayloadSize(v ir.Value) int {
	switch x := v.(type) {
	case ir.Null:
		return 0
	case ir.Bool:
		return 1
	case ir.Int:
		if FitsInt32(int64(x)) {
			return 4
		}
		return 8
	case ir.Double, ir.DateTime:
		return 8
	case ir.String:
		return 4 + len(x) + 1
	case ir.Binary:
		return BinarySize(x.Subtype, len(x.Data))
	case ir.UUID:
		return BinarySize(0x04, 16)
	case ir.ObjectID:
		return 12
	case ir.Decimal:
		return 16
	case ir.Regex:
		return len(x.Pattern) + 1 + len(x.Options) + 1
	case ir.Array:
		elems := 0
		for i, el := range x {
			elems += 1 + IndexKeySize(i) + 1 + PayloadSize(el)
		}
		return DocumentSize(elems)
	case ir.Document:
		elems := 0
		for _, f := range x {
			elems += ElementSize(f.Key, PayloadSize(f.Value))
		}
		return DocumentSize(elems)
	default:
		return 0
	}
}

// BinarySize returns the payload size of a binary value. The deprecated
// subtype 0x02 carries a second, inner length prefix.
func BinarySize(subtype byte, n int) int {
	if subtype == 0x02 {
		return 4 + 1 + 4 + n
	}
	return 4 + 1 + n
}
