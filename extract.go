package ferry

import (
	"context"
	"fmt"
	"maps"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zoobzio/ferry/errors"
	"github.com/zoobzio/ferry/ir"
	"github.com/zoobzio/ferry/wire"
)

// Extract walks a host value tree and builds an owned IR document.
//
// v must be document-shaped: bson.D, bson.M, a map with string keys, a
// struct, or a pointer or HostValuer yielding one of those. Extraction
// enforces every limit in cfg, so the returned document is known to encode
// without error. Nothing in the result aliases v.
//
// Extract must run while the host lock is held.
func Extract(ctx context.Context, v any, cfg Config) (ir.Document, error) {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	cfg.Rules = cfg.Rules.withDefaults()

	x := &extractor{
		ctx:    ctx,
		cfg:    cfg,
		active: make(map[visit]struct{}),
	}

	root, err := x.value(v, 0)
	if err != nil {
		return nil, err
	}
	doc, ok := root.(ir.Document)
	if !ok {
		return nil, errors.TypeMismatch("document", typeName(v)).At(errors.StageExtract, nil)
	}

	if size := wire.PayloadSize(doc); size > cfg.MaxSize {
		return nil, errors.DocumentTooLarge(size, cfg.MaxSize).At(errors.StageExtract, nil)
	}
	return doc, nil
}

// visit identifies a container currently being walked.
type visit struct {
	ptr uintptr
	n   int
	typ reflect.Type
}

type extractor struct {
	ctx    context.Context
	cfg    Config
	path   []string
	active map[visit]struct{}
	hops   int
}

func (x *extractor) fail(err *errors.Error) error {
	return err.At(errors.StageExtract, x.path)
}

// enter is called before descending into a container at level depth.
// Valuer hops are counted per container, so exit restores the count of the
// enclosing one.
func (x *extractor) enter(depth int) (exit func(), err error) {
	if depth > x.cfg.MaxDepth {
		return nil, x.fail(errors.DepthLimitExceeded(x.cfg.MaxDepth))
	}
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}
	hops := x.hops
	x.hops = 0
	return func() { x.hops = hops }, nil
}

// track marks a reference-typed container as being walked. Reaching it
// again before leave is called is a cycle.
func (x *extractor) track(rv reflect.Value) (leave func(), err error) {
	var key visit
	switch rv.Kind() {
	case reflect.Map, reflect.Pointer:
		if rv.IsNil() {
			return func() {}, nil
		}
		key = visit{ptr: rv.Pointer(), typ: rv.Type()}
	case reflect.Slice:
		if rv.Len() == 0 {
			return func() {}, nil
		}
		key = visit{ptr: rv.Pointer(), n: rv.Len(), typ: rv.Type()}
	default:
		return func() {}, nil
	}

	if _, seen := x.active[key]; seen {
		return nil, x.fail(errors.CircularReference())
	}
	x.active[key] = struct{}{}
	return func() { delete(x.active, key) }, nil
}

// value converts one host value. depth is the level of the enclosing
// container; containers created here sit at depth+1.
func (x *extractor) value(v any, depth int) (ir.Value, error) {
	if v == nil {
		return ir.Null{}, nil
	}
	if hv, ok := v.(HostValuer); ok {
		return x.hostValue(hv, depth)
	}

	switch t := v.(type) {
	case ir.Value:
		return nil, x.fail(errors.UnsupportedType(typeName(v)))

	// Bool is matched before any integer type.
	case bool:
		return ir.Bool(t), nil

	case int:
		return ir.Int(t), nil
	case int8:
		return ir.Int(t), nil
	case int16:
		return ir.Int(t), nil
	case int32:
		return ir.Int(t), nil
	case int64:
		return ir.Int(t), nil
	case uint8:
		return ir.Int(t), nil
	case uint16:
		return ir.Int(t), nil
	case uint32:
		return ir.Int(t), nil
	case uint:
		return x.unsigned(uint64(t))
	case uint64:
		return x.unsigned(t)
	case *big.Int:
		if t == nil {
			return ir.Null{}, nil
		}
		if !t.IsInt64() {
			return nil, x.fail(errors.IntegerOverflow(t.String()))
		}
		return ir.Int(t.Int64()), nil

	case float32:
		return ir.Double(t), nil
	case float64:
		return ir.Double(t), nil

	case string:
		return x.text(t)

	case []byte:
		if t == nil {
			return ir.Null{}, nil
		}
		return ir.Binary{Subtype: 0x00, Data: slices.Clone(t)}, nil
	case primitive.Binary:
		return x.binary(t.Subtype, t.Data)

	case primitive.ObjectID:
		return ir.ObjectID(t), nil
	case ObjectIDHex:
		oid, ok := ir.ParseObjectID(string(t))
		if !ok {
			return nil, x.fail(errors.InvalidObjectID(string(t)))
		}
		return oid, nil
	case ObjectIDBytes:
		if len(t) != 12 {
			return nil, x.fail(errors.InvalidObjectID(fmt.Sprintf("%x", []byte(t))))
		}
		return ir.ObjectID(t), nil

	case time.Time:
		return x.instant(t)
	case primitive.DateTime:
		ms := int64(t)
		if ms > math.MaxInt64/1000 || ms < math.MinInt64/1000 {
			return nil, x.fail(errors.IntegerOverflow(strconv.FormatInt(ms, 10) + "000"))
		}
		return ir.DateTime(ms * 1000), nil

	case primitive.Decimal128:
		return ir.Decimal(t.String()), nil

	case uuid.UUID:
		return ir.UUID(t), nil

	case primitive.Regex:
		return x.regex(t.Pattern, t.Options)
	case *regexp.Regexp:
		if t == nil {
			return ir.Null{}, nil
		}
		return x.regex(t.String(), "")

	case primitive.Null:
		return ir.Null{}, nil

	// Driver types with no IR counterpart.
	case primitive.Timestamp, primitive.MinKey, primitive.MaxKey, primitive.Undefined,
		primitive.JavaScript, primitive.CodeWithScope, primitive.Symbol, primitive.DBPointer,
		bson.Raw, bson.RawValue:
		return nil, x.fail(errors.UnsupportedType(typeName(v)))

	case bson.D:
		return x.ordered(t, depth+1)
	case bson.M:
		return x.mapping(t, depth+1)
	case map[string]any:
		return x.mapping(t, depth+1)
	}

	return x.composite(reflect.ValueOf(v), depth)
}

// composite handles named and composite types not matched by value.
func (x *extractor) composite(rv reflect.Value, depth int) (ir.Value, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return ir.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ir.Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return x.unsigned(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return ir.Double(rv.Float()), nil
	case reflect.String:
		return x.text(rv.String())

	case reflect.Slice:
		if rv.IsNil() {
			return ir.Null{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return ir.Binary{Subtype: 0x00, Data: slices.Clone(rv.Bytes())}, nil
		}
		return x.array(rv, depth+1)

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, rv.Len())
			for i := range data {
				data[i] = byte(rv.Index(i).Uint())
			}
			return ir.Binary{Subtype: 0x00, Data: data}, nil
		}
		return x.array(rv, depth+1)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, x.fail(errors.TypeMismatch("string map keys", rv.Type().Key().String()))
		}
		if rv.IsNil() {
			return ir.Null{}, nil
		}
		return x.reflectMap(rv, depth+1)

	case reflect.Struct:
		return x.structure(rv, depth+1)

	case reflect.Pointer:
		if rv.IsNil() {
			return ir.Null{}, nil
		}
		leave, err := x.track(rv)
		if err != nil {
			return nil, err
		}
		defer leave()
		return x.value(rv.Elem().Interface(), depth)

	case reflect.Interface:
		if rv.IsNil() {
			return ir.Null{}, nil
		}
		return x.value(rv.Elem().Interface(), depth)
	}

	return nil, x.fail(errors.UnsupportedType(rv.Type().String()))
}

func (x *extractor) hostValue(hv HostValuer, depth int) (ir.Value, error) {
	rv := reflect.ValueOf(hv)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ir.Null{}, nil
	}

	// A valuer returning itself by value has no reference to track.
	x.hops++
	defer func() { x.hops-- }()
	if x.hops > x.cfg.MaxDepth {
		return nil, x.fail(errors.CircularReference())
	}

	leave, err := x.track(rv)
	if err != nil {
		return nil, err
	}
	defer leave()

	v, err := hv.HostValue()
	if err != nil {
		if ce, ok := errors.As(err); ok {
			return nil, ce.At(errors.StageExtract, x.path)
		}
		return nil, fmt.Errorf("%s.HostValue: %w", typeName(hv), err)
	}
	return x.value(v, depth)
}

func (x *extractor) unsigned(n uint64) (ir.Value, error) {
	if n > math.MaxInt64 {
		return nil, x.fail(errors.IntegerOverflow(strconv.FormatUint(n, 10)))
	}
	return ir.Int(n), nil
}

func (x *extractor) text(s string) (ir.Value, error) {
	if !utf8.ValidString(s) {
		return nil, x.fail(errors.InvalidUTF8())
	}
	return ir.String(s), nil
}

func (x *extractor) binary(subtype byte, data []byte) (ir.Value, error) {
	if subtype == 0x04 {
		if len(data) != 16 {
			return nil, x.fail(errors.TypeMismatch("16-byte UUID", fmt.Sprintf("%d bytes", len(data))))
		}
		var u ir.UUID
		copy(u[:], data)
		return u, nil
	}
	return ir.Binary{Subtype: subtype, Data: append([]byte{}, data...)}, nil
}

// instant converts to microseconds since the epoch. The instant is kept
// exactly; millisecond truncation happens on the wire.
func (x *extractor) instant(t time.Time) (ir.Value, error) {
	sec := t.Unix()
	if sec > math.MaxInt64/1_000_000-1 || sec < math.MinInt64/1_000_000+1 {
		return nil, x.fail(errors.IntegerOverflow(t.UTC().Format(time.RFC3339)))
	}
	return ir.DateTime(t.UnixMicro()), nil
}

func (x *extractor) regex(pattern, options string) (ir.Value, error) {
	if !utf8.ValidString(pattern) || !utf8.ValidString(options) {
		return nil, x.fail(errors.InvalidUTF8())
	}
	if strings.IndexByte(pattern, 0) >= 0 {
		return nil, x.fail(errors.TypeMismatch("regex pattern without NUL", strconv.Quote(pattern)))
	}
	if strings.IndexByte(options, 0) >= 0 {
		return nil, x.fail(errors.TypeMismatch("regex options without NUL", strconv.Quote(options)))
	}
	return ir.Regex{Pattern: pattern, Options: ir.RegexOptions(options)}, nil
}

// field converts one key/value pair of a document at level depth.
func (x *extractor) field(key string, v any, depth int) (ir.Field, error) {
	parent := len(x.path)
	x.path = append(x.path, key)
	defer func() { x.path = x.path[:parent] }()

	if !utf8.ValidString(key) {
		return ir.Field{}, x.fail(errors.InvalidUTF8())
	}
	if err := x.cfg.Rules.CheckKey(key); err != nil {
		if ve, ok := err.(*errors.ValidationError); ok {
			ve.Path = slices.Clone(x.path[:parent])
		}
		return ir.Field{}, err
	}

	val, err := x.value(v, depth)
	if err != nil {
		return ir.Field{}, err
	}
	return ir.Field{Key: key, Value: val}, nil
}

func (x *extractor) ordered(d bson.D, depth int) (ir.Value, error) {
	exit, err := x.enter(depth)
	if err != nil {
		return nil, err
	}
	defer exit()
	leave, err := x.track(reflect.ValueOf(d))
	if err != nil {
		return nil, err
	}
	defer leave()

	doc := make(ir.Document, 0, len(d))
	for _, e := range d {
		f, err := x.field(e.Key, e.Value, depth)
		if err != nil {
			return nil, err
		}
		doc = append(doc, f)
	}
	return doc, nil
}

// mapping converts an unordered map. Keys are emitted in sorted order so
// the same map always encodes to the same bytes.
func (x *extractor) mapping(m map[string]any, depth int) (ir.Value, error) {
	if m == nil {
		return ir.Null{}, nil
	}
	exit, err := x.enter(depth)
	if err != nil {
		return nil, err
	}
	defer exit()
	leave, err := x.track(reflect.ValueOf(m))
	if err != nil {
		return nil, err
	}
	defer leave()

	doc := make(ir.Document, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		f, err := x.field(k, m[k], depth)
		if err != nil {
			return nil, err
		}
		doc = append(doc, f)
	}
	return doc, nil
}

func (x *extractor) reflectMap(rv reflect.Value, depth int) (ir.Value, error) {
	exit, err := x.enter(depth)
	if err != nil {
		return nil, err
	}
	defer exit()
	leave, err := x.track(rv)
	if err != nil {
		return nil, err
	}
	defer leave()

	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})

	doc := make(ir.Document, 0, len(keys))
	for _, k := range keys {
		f, err := x.field(k.String(), rv.MapIndex(k).Interface(), depth)
		if err != nil {
			return nil, err
		}
		doc = append(doc, f)
	}
	return doc, nil
}

func (x *extractor) structure(rv reflect.Value, depth int) (ir.Value, error) {
	exit, err := x.enter(depth)
	if err != nil {
		return nil, err
	}
	defer exit()

	plan := planFor(rv.Type())
	doc := make(ir.Document, 0, len(plan.fields))
	for _, fp := range plan.fields {
		fv, err := rv.FieldByIndexErr(fp.index)
		if err != nil {
			// Nil embedded pointer on the access path.
			continue
		}
		if fp.omitEmpty && fv.IsZero() {
			continue
		}
		if !fv.CanInterface() {
			continue
		}
		f, err := x.field(fp.key, fv.Interface(), depth)
		if err != nil {
			return nil, err
		}
		doc = append(doc, f)
	}
	return doc, nil
}

func (x *extractor) array(rv reflect.Value, depth int) (ir.Value, error) {
	exit, err := x.enter(depth)
	if err != nil {
		return nil, err
	}
	defer exit()
	leave, err := x.track(rv)
	if err != nil {
		return nil, err
	}
	defer leave()

	n := rv.Len()
	arr := make(ir.Array, 0, n)
	for i := 0; i < n; i++ {
		x.path = append(x.path, strconv.Itoa(i))
		v, err := x.value(rv.Index(i).Interface(), depth)
		x.path = x.path[:len(x.path)-1]
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
