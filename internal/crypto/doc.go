// Package crypto exposes the minimal primitives used by heartline.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - Partnership safety numbers for out-of-band comparison (SafetyNumber)
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain. Callers
// should treat returned secrets as sensitive and rely on Wipe when practical
// to reduce lifetime in memory.
package crypto
