// Package sealer is the encryption engine for touch envelopes.
//
// Payloads are sealed with XChaCha20-Poly1305 under the Partnership key
// derived by package keyagree. Every call draws a fresh random 192-bit nonce.
// The associated data binds the format version, session id, sender, receiver,
// envelope id, kind and send time, so a sealed envelope cannot be replayed
// into another Partnership or have its routing metadata rewritten.
//
// Open never reports why authentication failed: every failure is
// domain.ErrDecryptionFailure.
package sealer
