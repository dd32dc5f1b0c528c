package ir

import (
	"encoding/hex"
	"math"
	"slices"
)

// Kind identifies the case of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindBinary
	KindArray
	KindDocument
	KindObjectID
	KindDateTime
	KindDecimal
	KindUUID
	KindRegex
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindDouble:   "double",
	KindString:   "string",
	KindBinary:   "binary",
	KindArray:    "array",
	KindDocument: "document",
	KindObjectID: "objectId",
	KindDateTime: "datetime",
	KindDecimal:  "decimal",
	KindUUID:     "uuid",
	KindRegex:    "regex",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a sealed interface over the thirteen interchange cases.
// Only the types in this file implement it.
type Value interface {
	Kind() Kind
	value()
}

// Null is the BSON null value.
type Null struct{}

// Bool is a boolean.
type Bool bool

// Int is a signed 64-bit integer. The 32/64-bit wire width is chosen by the encoder.
type Int int64

// Double is an IEEE-754 double. NaN and infinities are preserved.
type Double float64

// String is a UTF-8 string.
type String string

// Binary is a blob with its BSON subtype.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Array is an ordered sequence of values.
type Array []Value

// Field is a single key/value pair of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is an ordered sequence of fields. Insertion order is preserved,
// never sorted.
type Document []Field

// ObjectID is the 12-byte object identifier.
type ObjectID [12]byte

// DateTime is a UTC instant in microseconds since the Unix epoch.
type DateTime int64

// Decimal is a 128-bit decimal held in its string form.
type Decimal string

// UUID is a 128-bit unique identifier.
type UUID [16]byte

// Regex is a pattern/options pair. Options are held in RegexOptions form.
type Regex struct {
	Pattern string
	Options string
}

// RegexOptions sorts options and drops duplicates, the form the server
// stores them in.
func RegexOptions(options string) string {
	if len(options) < 2 {
		return options
	}
	r := []rune(options)
	slices.Sort(r)
	return string(slices.Compact(r))
}

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Int) Kind() Kind      { return KindInt }
func (Double) Kind() Kind   { return KindDouble }
func (String) Kind() Kind   { return KindString }
func (Binary) Kind() Kind   { return KindBinary }
func (Array) Kind() Kind    { return KindArray }
func (Document) Kind() Kind { return KindDocument }
func (ObjectID) Kind() Kind { return KindObjectID }
func (DateTime) Kind() Kind { return KindDateTime }
func (Decimal) Kind() Kind  { return KindDecimal }
func (UUID) Kind() Kind     { return KindUUID }
func (Regex) Kind() Kind    { return KindRegex }

func (Null) value()     {}
func (Bool) value()     {}
func (Int) value()      {}
func (Double) value()   {}
func (String) value()   {}
func (Binary) value()   {}
func (Array) value()    {}
func (Document) value() {}
func (ObjectID) value() {}
func (DateTime) value() {}
func (Decimal) value()  {}
func (UUID) value()     {}
func (Regex) value()    {}

// Hex returns the canonical 24-character lowercase hex form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseObjectID parses the 24-character hex form.
func ParseObjectID(s string) (ObjectID, bool) {
	var id ObjectID
	if len(s) != 24 {
		return id, false
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, false
	}
	return id, true
}

// Get returns the value of the first field named key.
func (d Document) Get(key string) (Value, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the field names in document order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}
	return keys
}

// Equal reports deep equality of two values. Document key order is
// significant and NaN equals NaN.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch x := a.(type) {
	case Double:
		y := b.(Double)
		if math.IsNaN(float64(x)) {
			return math.IsNaN(float64(y))
		}
		return x == y
	case Binary:
		y := b.(Binary)
		return x.Subtype == y.Subtype && string(x.Data) == string(y.Data)
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Document:
		y := b.(Document)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
