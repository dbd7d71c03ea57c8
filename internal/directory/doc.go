// Package directory implements the shared pairing directory: published
// pairing codes, each owner's current code, and acceptances waiting for the
// code owner.
//
// Memory is an in-process implementation for tests and single-process relays.
// Redis stores the same records in Redis with native key expiry.
package directory
