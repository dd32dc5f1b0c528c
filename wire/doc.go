// Package wire converts interchange values to and from BSON documents.
//
// Everything here is a pure function of its arguments. No function in this
// package reads caller-owned memory other than the slice handed to Decode,
// and none of them panics on bad input: every failure comes back as an
// *errors.Error. This is the stage that runs with the host lock released,
// so it must stay free of anything that could observe or unwind into host
// state.
//
// Encoding rules:
//
//	Int       int32 when it fits, otherwise int64
//	Array     embedded array keyed "0", "1", ...
//	DateTime  UTC milliseconds (microseconds floored)
//	UUID      binary subtype 0x04
//
// Decoding maps int32 and int64 back to Int, binary subtype 0x04 of length
// 16 to UUID, and rejects timestamp, min/max key, JavaScript and DBPointer.
package wire
