// Package canon computes content-addressed identities for artifacts.
//
// The fingerprint of an artifact is a 128-bit digest over a canonical byte
// serialization of (kind, input). Canonicalization guarantees that two
// inputs which differ only in object key order, array element order, or
// Unicode normalization form hash identically.
//
// This is the ONLY serialization that may be used for identity computation;
// descriptor files and wire output use ordinary encoding/json.
package canon
