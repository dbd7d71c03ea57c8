// Package codec converts touch payloads to and from the plaintext bytes that
// the encryption engine seals.
//
// # Frame
//
//	+---------+-------+---------------------------------+
//	| version | flags | body                            |
//	+---------+-------+---------------------------------+
//	  1 byte    1 byte  deterministic CBOR, zstd if flagged
//
// Bodies larger than CompressThreshold are zstd-compressed. Decoding
// validates the payload (gesture catalog, point count, coordinate ranges,
// non-decreasing offsets) and reports every violation as
// domain.ErrMalformedPayload.
//
// PathRecorder turns a live drag interaction into a bounded, rate-limited
// Path, estimating per-point intensity from pressure or velocity.
package codec
