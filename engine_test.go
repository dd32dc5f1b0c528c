package ferry_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/zoobzio/ferry"
	ferrors "github.com/zoobzio/ferry/errors"
)

func newEngine(t testing.TB, opts ...ferry.Option) *ferry.Engine {
	t.Helper()
	eng, err := ferry.New(opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return eng
}

func roundTrip(t *testing.T, eng *ferry.Engine, v any) bson.D {
	t.Helper()
	data, err := eng.Write(context.Background(), v)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out, err := eng.Read(context.Background(), data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	return out
}

// sameValue is reflect.DeepEqual with NaN equal to itself.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(x) {
			return math.IsNaN(y)
		}
		return x == y && math.Signbit(x) == math.Signbit(y)
	case bson.D:
		y, ok := b.(bson.D)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !sameValue(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case bson.A:
		y, ok := b.(bson.A)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func mustDecimal(s string) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		panic(err)
	}
	return d
}

func nest(levels int) bson.D {
	d := bson.D{{Key: "a", Value: int64(1)}}
	for i := 1; i < levels; i++ {
		d = bson.D{{Key: "a", Value: d}}
	}
	return d
}

func TestRoundTrip_Lattice(t *testing.T) {
	eng := newEngine(t)
	oid := primitive.NewObjectID()

	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"true", true},
		{"false", false},
		{"zero", int64(0)},
		{"max int32", int64(math.MaxInt32)},
		{"min int32", int64(math.MinInt32)},
		{"above int32", int64(math.MaxInt32) + 1},
		{"below int32", int64(math.MinInt32) - 1},
		{"max int64", int64(math.MaxInt64)},
		{"min int64", int64(math.MinInt64)},
		{"near max int64", int64(math.MaxInt64 - 1)},
		{"double", 3.25},
		{"negative zero", math.Copysign(0, -1)},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"-inf", math.Inf(-1)},
		{"empty string", ""},
		{"unicode", "héllo, 世界 🚀"},
		{"empty binary", []byte{}},
		{"binary", []byte{0, 1, 2, 255}},
		{"binary subtype", primitive.Binary{Subtype: 0x80, Data: []byte("custom")}},
		{"empty array", bson.A{}},
		{"array", bson.A{int64(1), "two", bson.A{}, bson.D{}}},
		{"empty document", bson.D{}},
		{"document", bson.D{{Key: "x", Value: bson.D{{Key: "y", Value: nil}}}}},
		{"deep", nest(99)},
		{"object id", oid},
		{"datetime", time.UnixMilli(1_700_000_000_123).UTC()},
		{"epoch", time.UnixMilli(0).UTC()},
		{"before epoch", time.UnixMilli(-86_400_001).UTC()},
		{"decimal", mustDecimal("1234.5678")},
		{"decimal nan", mustDecimal("NaN")},
		{"uuid", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
		{"regex", primitive.Regex{Pattern: "^a.*z$", Options: "im"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bson.D{{Key: "v", Value: tt.value}}
			out := roundTrip(t, eng, in)
			if !sameValue(in, out) {
				t.Errorf("round trip = %#v, want %#v", out, in)
			}
		})
	}
}

func TestRoundTrip_BinaryNearCeiling(t *testing.T) {
	eng := newEngine(t)

	in := bson.D{{Key: "b", Value: bytes.Repeat([]byte{0xab}, ferry.DefaultMaxSize-14)}}
	out := roundTrip(t, eng, in)
	if !sameValue(in, out) {
		t.Error("round trip of large binary differs")
	}
}

func TestScenarioA_SimpleDocument(t *testing.T) {
	eng := newEngine(t)

	in := bson.D{
		{Key: "name", Value: "Ada"},
		{Key: "age", Value: int64(36)},
		{Key: "active", Value: true},
	}
	out := roundTrip(t, eng, in)

	if !reflect.DeepEqual(in, out) {
		t.Fatalf("Read() = %#v, want %#v", out, in)
	}
	for i := range in {
		if reflect.TypeOf(out[i].Value) != reflect.TypeOf(in[i].Value) {
			t.Errorf("%s: type %T, want %T", in[i].Key, out[i].Value, in[i].Value)
		}
	}
}

func TestScenarioB_DepthFailsBeforeRelease(t *testing.T) {
	lock := ferry.NewCountingLock(nil)
	eng := newEngine(t, ferry.WithLock(lock))

	_, err := eng.Write(context.Background(), nest(101))

	if !errors.Is(err, ferry.ErrDepthLimitExceeded) {
		t.Fatalf("Write() = %v, want ErrDepthLimitExceeded", err)
	}
	ce, _ := ferrors.As(err)
	if ce.Stage != ferrors.StageExtract {
		t.Errorf("Stage = %s, want extract", ce.Stage)
	}
	if lock.Releases() != 0 {
		t.Errorf("lock released %d times, want 0", lock.Releases())
	}
}

func TestDepthBoundary(t *testing.T) {
	lock := ferry.NewCountingLock(nil)
	eng := newEngine(t, ferry.WithLock(lock))

	out := roundTrip(t, eng, nest(100))
	if !reflect.DeepEqual(out, nest(100)) {
		t.Error("100-level document did not round trip")
	}
	if lock.Releases() != 2 || lock.Acquires() != 2 {
		t.Errorf("releases=%d acquires=%d, want 2/2", lock.Releases(), lock.Acquires())
	}
}

func TestSizeBoundary(t *testing.T) {
	eng := newEngine(t)

	// {"b": <binary n>} encodes to n + 13 bytes.
	exact := bson.D{{Key: "b", Value: make([]byte, ferry.DefaultMaxSize-13)}}
	data, err := eng.Write(context.Background(), exact)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if len(data) != ferry.DefaultMaxSize {
		t.Fatalf("len = %d, want %d", len(data), ferry.DefaultMaxSize)
	}
	if _, err := eng.Read(context.Background(), data); err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	over := bson.D{{Key: "b", Value: make([]byte, ferry.DefaultMaxSize-12)}}
	_, err = eng.Write(context.Background(), over)
	if !errors.Is(err, ferry.ErrDocumentTooLarge) {
		t.Fatalf("Write() = %v, want ErrDocumentTooLarge", err)
	}
	if err.Error() != "document size 16777217 exceeds the maximum of 16777216 bytes" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestBoolIntDiscrimination(t *testing.T) {
	eng := newEngine(t)

	out := roundTrip(t, eng, bson.D{
		{Key: "t", Value: true},
		{Key: "f", Value: false},
		{Key: "one", Value: 1},
		{Key: "zero", Value: 0},
	})

	if v, ok := out[0].Value.(bool); !ok || !v {
		t.Errorf("t = %#v, want true", out[0].Value)
	}
	if v, ok := out[1].Value.(bool); !ok || v {
		t.Errorf("f = %#v, want false", out[1].Value)
	}
	if v, ok := out[2].Value.(int64); !ok || v != 1 {
		t.Errorf("one = %#v, want int64(1)", out[2].Value)
	}
	if v, ok := out[3].Value.(int64); !ok || v != 0 {
		t.Errorf("zero = %#v, want int64(0)", out[3].Value)
	}
}

func TestOrderPreserved(t *testing.T) {
	eng := newEngine(t)

	out := roundTrip(t, eng, bson.D{
		{Key: "zeta", Value: int64(1)},
		{Key: "alpha", Value: bson.D{{Key: "z", Value: int64(2)}, {Key: "a", Value: int64(3)}}},
		{Key: "mu", Value: int64(4)},
	})

	keys := []string{out[0].Key, out[1].Key, out[2].Key}
	if !reflect.DeepEqual(keys, []string{"zeta", "alpha", "mu"}) {
		t.Errorf("keys = %v", keys)
	}
	inner := out[1].Value.(bson.D)
	if inner[0].Key != "z" || inner[1].Key != "a" {
		t.Errorf("nested keys = %v", inner)
	}
}

func TestDateTime_TruncatesToMillis(t *testing.T) {
	eng := newEngine(t)

	in := time.Date(2024, 1, 2, 3, 4, 5, 678_901_000, time.UTC)
	out := roundTrip(t, eng, bson.D{{Key: "at", Value: in}})

	got := out[0].Value.(time.Time)
	if !got.Equal(in.Truncate(time.Millisecond)) {
		t.Errorf("at = %v, want %v", got, in.Truncate(time.Millisecond))
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

// Each failure is produced once during extraction and once during decode.
func TestErrorTextEquivalence(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	deep, err := bson.Marshal(nest(101))
	if err != nil {
		t.Fatal(err)
	}
	badString := bsoncore.BuildDocumentFromElements(nil, bsoncore.AppendStringElement(nil, "s", "\xff"))
	oversized, err := bson.Marshal(bson.D{{Key: "b", Value: make([]byte, ferry.DefaultMaxSize-12)}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		write any
		read  []byte
		want  string
	}{
		{"depth", nest(101), deep, "document nesting exceeds the maximum depth of 100"},
		{"utf8", bson.D{{Key: "s", Value: "\xff"}}, badString, "string is not valid UTF-8"},
		{"size", bson.D{{Key: "b", Value: make([]byte, ferry.DefaultMaxSize-12)}}, oversized, "document size 16777217 exceeds the maximum of 16777216 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, werr := eng.Write(ctx, tt.write)
			_, rerr := eng.Read(ctx, tt.read)
			if werr == nil || rerr == nil {
				t.Fatalf("Write() = %v, Read() = %v, both should fail", werr, rerr)
			}
			if werr.Error() != tt.want {
				t.Errorf("Write() error = %q, want %q", werr.Error(), tt.want)
			}
			if rerr.Error() != tt.want {
				t.Errorf("Read() error = %q, want %q", rerr.Error(), tt.want)
			}

			wce, _ := ferrors.As(werr)
			rce, _ := ferrors.As(rerr)
			if wce.Kind != rce.Kind {
				t.Errorf("kinds differ: %s vs %s", wce.Kind, rce.Kind)
			}
		})
	}
}

func TestRead_ReleasesLockAndCopiesInput(t *testing.T) {
	lock := ferry.NewCountingLock(ferry.NewMutexLock())
	eng := newEngine(t, ferry.WithLock(lock))

	data, err := bson.Marshal(bson.D{{Key: "b", Value: []byte{1, 2, 3}}})
	if err != nil {
		t.Fatal(err)
	}

	lock.Acquire()
	out, err := eng.Read(context.Background(), data)
	lock.Release()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	for i := range data {
		data[i] = 0
	}
	if got := out[0].Value.([]byte); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("materialized bytes alias the input: %v", got)
	}
	if lock.Releases() != 2 || lock.Acquires() != 2 {
		t.Errorf("releases=%d acquires=%d, want 2/2", lock.Releases(), lock.Acquires())
	}
}

func TestRead_InvalidInputReacquiresLock(t *testing.T) {
	inner := ferry.NewMutexLock()
	eng := newEngine(t, ferry.WithLock(inner))

	inner.Acquire()
	_, err := eng.Read(context.Background(), []byte{1, 2, 3})
	if !errors.Is(err, ferry.ErrTypeMismatch) {
		t.Errorf("Read() = %v, want ErrTypeMismatch", err)
	}
	if inner.TryAcquire() {
		t.Fatal("lock should be held again after Read returns")
	}
	inner.Release()
}

func TestRead_Strict(t *testing.T) {
	data := bsoncore.BuildDocumentFromElements(nil, bsoncore.AppendSymbolElement(nil, "s", "sym"))

	out, err := newEngine(t).Read(context.Background(), data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if out[0].Value != "sym" {
		t.Errorf("symbol = %#v, want string", out[0].Value)
	}

	_, err = newEngine(t, ferry.WithStrict(true)).Read(context.Background(), data)
	if !errors.Is(err, ferry.ErrUnsupportedType) {
		t.Errorf("Read() = %v, want ErrUnsupportedType", err)
	}
}

// probeContext reports whether the host lock was free at any point the
// engine checked for cancellation.
type probeContext struct {
	context.Context
	lock *ferry.MutexLock
	free atomic.Bool
}

func (p *probeContext) Err() error {
	if p.lock.TryAcquire() {
		p.lock.Release()
		p.free.Store(true)
	}
	return p.Context.Err()
}

func TestWrite_EncodesWithoutLock(t *testing.T) {
	lock := ferry.NewMutexLock()
	eng := newEngine(t, ferry.WithLock(lock))
	ctx := &probeContext{Context: context.Background(), lock: lock}

	lock.Acquire()
	_, err := eng.Write(ctx, bson.D{{Key: "a", Value: bson.D{{Key: "b", Value: int64(1)}}}})
	held := !lock.TryAcquire()
	lock.Release()

	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !ctx.free.Load() {
		t.Error("lock was never released during Write")
	}
	if !held {
		t.Error("lock should be held again after Write returns")
	}
}

// regionLock records whether its owner is inside the lock-released region.
type regionLock struct {
	inner    *ferry.MutexLock
	released atomic.Bool
}

func (l *regionLock) Acquire() {
	l.inner.Acquire()
	l.released.Store(false)
}

func (l *regionLock) Release() {
	l.released.Store(true)
	l.inner.Release()
}

// rendezvousContext blocks the first cancellation check made inside the
// released region until every participant has reached the same point.
type rendezvousContext struct {
	context.Context
	lock     *regionLock
	arrived  *sync.WaitGroup
	all      <-chan struct{}
	met      atomic.Bool
	timedOut atomic.Bool
}

func (c *rendezvousContext) Err() error {
	if c.lock.released.Load() && c.met.CompareAndSwap(false, true) {
		c.arrived.Done()
		select {
		case <-c.all:
		case <-time.After(5 * time.Second):
			c.timedOut.Store(true)
		}
	}
	return c.Context.Err()
}

func TestRead_ConcurrentProgress(t *testing.T) {
	const workers = 2

	shared := ferry.NewMutexLock()
	data, err := bson.Marshal(bson.D{{Key: "doc", Value: bson.D{{Key: "n", Value: int64(7)}}}})
	if err != nil {
		t.Fatal(err)
	}

	var arrived sync.WaitGroup
	arrived.Add(workers)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()

	ctxs := make([]*rendezvousContext, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		lock := &regionLock{inner: shared}
		eng := newEngine(t, ferry.WithLock(lock))
		ctxs[i] = &rendezvousContext{Context: context.Background(), lock: lock, arrived: &arrived, all: all}

		wg.Add(1)
		go func(eng *ferry.Engine, ctx *rendezvousContext) {
			defer wg.Done()
			lock.Acquire()
			defer lock.Release()
			if _, err := eng.Read(ctx, data); err != nil {
				t.Errorf("Read() error: %v", err)
			}
		}(eng, ctxs[i])
	}
	wg.Wait()

	for i, ctx := range ctxs {
		if ctx.timedOut.Load() {
			t.Errorf("worker %d never met the others inside the released region", i)
		}
	}
}

func TestRead_Concurrent(t *testing.T) {
	lock := ferry.NewMutexLock()
	eng := newEngine(t, ferry.WithLock(lock))

	want := bson.D{
		{Key: "name", Value: "Ada"},
		{Key: "tags", Value: bson.A{"a", "b"}},
		{Key: "n", Value: int64(math.MaxInt64)},
	}
	data, err := bson.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Acquire()
			out, err := eng.Read(context.Background(), data)
			lock.Release()
			if err != nil {
				t.Errorf("Read() error: %v", err)
				return
			}
			if !reflect.DeepEqual(out, want) {
				t.Errorf("Read() = %#v, want %#v", out, want)
			}
		}()
	}
	wg.Wait()
}

func TestWrite_Concurrent(t *testing.T) {
	lock := ferry.NewMutexLock()
	eng := newEngine(t, ferry.WithLock(lock))

	want, err := bson.Marshal(bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: "x"}})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Acquire()
			data, err := eng.Write(context.Background(), bson.D{{Key: "a", Value: 1}, {Key: "b", Value: "x"}})
			lock.Release()
			if err != nil {
				t.Errorf("Write() error: %v", err)
				return
			}
			if !bytes.Equal(data, want) {
				t.Errorf("Write() = %x, want %x", data, want)
			}
		}()
	}
	wg.Wait()
}

func TestWrite_MatchesDriver(t *testing.T) {
	eng := newEngine(t)

	doc := bson.D{
		{Key: "s", Value: "str"},
		{Key: "i", Value: int32(5)},
		{Key: "l", Value: int64(math.MaxInt64)},
		{Key: "d", Value: 1.5},
		{Key: "b", Value: true},
		{Key: "n", Value: nil},
		{Key: "a", Value: bson.A{"x", int32(2)}},
		{Key: "o", Value: bson.D{{Key: "k", Value: "v"}}},
	}
	want, err := bson.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eng.Write(context.Background(), doc)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Write() = %x, want %x", got, want)
	}
}

func TestWrite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t).Write(ctx, bson.D{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Write() = %v, want context.Canceled", err)
	}
}

func TestCheckCollection(t *testing.T) {
	eng := newEngine(t)

	if err := eng.CheckCollection("users"); err != nil {
		t.Errorf("CheckCollection(users) error: %v", err)
	}
	if err := eng.CheckCollection("system.users"); !errors.Is(err, ferry.ErrInvalidCollectionName) {
		t.Errorf("CheckCollection(system.users) = %v", err)
	}
}

func TestCodec(t *testing.T) {
	var codec ferry.Codec = newEngine(t)

	if codec.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q", codec.ContentType())
	}

	data, err := codec.Marshal(bson.D{{Key: "b", Value: int64(2)}, {Key: "a", Value: int64(1)}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var d bson.D
	if err := codec.Unmarshal(data, &d); err != nil {
		t.Fatalf("Unmarshal(*bson.D) error: %v", err)
	}
	if d[0].Key != "b" {
		t.Errorf("bson.D order lost: %v", d)
	}

	var m bson.M
	if err := codec.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal(*bson.M) error: %v", err)
	}
	if m["a"] != int64(1) || m["b"] != int64(2) {
		t.Errorf("bson.M = %v", m)
	}

	var a any
	if err := codec.Unmarshal(data, &a); err != nil {
		t.Fatalf("Unmarshal(*any) error: %v", err)
	}
	if _, ok := a.(bson.D); !ok {
		t.Errorf("any = %T, want bson.D", a)
	}

	var s string
	if err := codec.Unmarshal(data, &s); !errors.Is(err, ferry.ErrInvalidTarget) {
		t.Errorf("Unmarshal(*string) = %v, want ErrInvalidTarget", err)
	}
}

func TestRegex_ReadThenWrite(t *testing.T) {
	eng := newEngine(t)
	data, err := bson.Marshal(bson.D{{Key: "re", Value: primitive.Regex{Pattern: "a", Options: "gi"}}})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	doc, err := eng.Read(context.Background(), data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	again, err := eng.Write(context.Background(), doc)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Errorf("Write(Read(x)) = %x, want %x", again, data)
	}
}

func TestWithConfig_PartialKeepsOperatorRule(t *testing.T) {
	eng := newEngine(t, ferry.WithConfig(ferry.Config{MaxDepth: 10, MaxSize: 1000}))

	_, err := eng.Write(context.Background(), bson.D{{Key: "$where", Value: "1"}})
	if !errors.Is(err, ferry.ErrInvalidFieldName) {
		t.Errorf("Write() = %v, want ErrInvalidFieldName", err)
	}
	if got := eng.Config().Rules.OperatorPrefixes; len(got) != 1 || got[0] != "$" {
		t.Errorf("OperatorPrefixes = %v, want [$]", got)
	}
}
