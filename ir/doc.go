// Package ir defines the interchange value passed between extraction,
// wire conversion and materialization.
//
// A Value is plain data: it holds no references into caller-owned memory
// and is never shared between calls. Each call builds a fresh tree, hands it
// to exactly one consumer and drops it. That exclusive ownership is what
// allows the wire stage to run with the host lock released.
//
// The thirteen cases are:
//
//	Null Bool Int Double String Binary Array Document
//	ObjectID DateTime Decimal UUID Regex
//
// Document keeps fields in insertion order. It is a slice, not a map.
package ir
