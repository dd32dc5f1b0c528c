// Package testing provides test utilities for ferry.
package testing

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zoobzio/ferry"
)

// SimpleUser is a struct fixture using bson tags.
type SimpleUser struct {
	ID     primitive.ObjectID `bson:"_id"`
	Name   string             `bson:"name"`
	Age    int64              `bson:"age"`
	Active bool               `bson:"active"`
	Tags   []string           `bson:"tags,omitempty"`
}

// Engine returns an Engine built with opts, failing tb on error.
func Engine(tb testing.TB, opts ...ferry.Option) *ferry.Engine {
	tb.Helper()
	eng, err := ferry.New(opts...)
	if err != nil {
		tb.Fatalf("ferry.New() error: %v", err)
	}
	return eng
}

// MustMarshal encodes v with the driver, failing tb on error. It is the
// reference encoder for comparing wire output.
func MustMarshal(tb testing.TB, v any) []byte {
	tb.Helper()
	data, err := bson.Marshal(v)
	if err != nil {
		tb.Fatalf("bson.Marshal() error: %v", err)
	}
	return data
}

// Nested returns a document nested to levels, counting the root as one.
func Nested(levels int) bson.D {
	d := bson.D{{Key: "a", Value: int64(1)}}
	for i := 1; i < levels; i++ {
		d = bson.D{{Key: "a", Value: d}}
	}
	return d
}

// SizedDocument returns a single-field document that encodes to exactly
// size bytes. size must be at least 13.
func SizedDocument(size int) bson.D {
	return bson.D{{Key: "b", Value: make([]byte, size-13)}}
}

// Lattice returns a document holding one value of every interchange type,
// each already in the form materialization produces.
func Lattice() bson.D {
	oid, _ := primitive.ObjectIDFromHex("65a1b2c3d4e5f60718293a4b")
	dec, _ := primitive.ParseDecimal128("9.99")
	return bson.D{
		{Key: "null", Value: nil},
		{Key: "bool", Value: true},
		{Key: "int32", Value: int64(math.MaxInt32)},
		{Key: "int64", Value: int64(math.MaxInt64)},
		{Key: "double", Value: 2.5},
		{Key: "string", Value: "héllo"},
		{Key: "binary", Value: []byte{0xde, 0xad}},
		{Key: "typed", Value: primitive.Binary{Subtype: 0x80, Data: []byte{1}}},
		{Key: "array", Value: bson.A{int64(1), "two"}},
		{Key: "document", Value: bson.D{{Key: "k", Value: "v"}}},
		{Key: "oid", Value: oid},
		{Key: "date", Value: time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)},
		{Key: "decimal", Value: dec},
		{Key: "uuid", Value: uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")},
		{Key: "regex", Value: primitive.Regex{Pattern: "^x", Options: "i"}},
	}
}

// Locked runs fn while holding lock, the way a host bridge calls the engine.
func Locked(lock ferry.Lock, fn func()) {
	lock.Acquire()
	defer lock.Release()
	fn()
}
