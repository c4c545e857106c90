// Package frame owns the register-access wire format.
//
// Ownership boundary:
// - operation tags (class, kind, count) and varuint register addresses
// - little-endian value encoding for int8/int16/int32/float32
// - reply decoding against the queries that produced it
package frame
