// Package keyagree derives the symmetric key of a Partnership from the two
// partners' long-term X25519 keys.
//
// # Overview
//
// Each identity publishes an X25519 public key with its pairing code (issuer)
// or its acceptance (resolver). Once both public keys are known, each side
// computes the same shared secret without a trusted third party:
//
//  1. DH = X25519(local private, peer public).
//  2. key = HKDF-SHA256(ikm = DH, salt = SHA-256(session id),
//     info = "heartline/partnership/v1" || sorted(local public, peer public)).
//
// Binding the session id and both public keys means a key derived for one
// Partnership can never open envelopes sealed for another.
package keyagree
