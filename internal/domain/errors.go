package domain

import "errors"

// Pairing errors. These are user-correctable and surfaced to the caller.
var (
	ErrCodeNotFound       = errors.New("pairing code not found")
	ErrCodeExpired        = errors.New("pairing code expired")
	ErrSelfPairing        = errors.New("cannot pair with your own code")
	ErrCodeSpaceExhausted = errors.New("no free pairing code value after retries")
	ErrClaimRejected      = errors.New("acceptance does not match a redeemed pairing code")
)

// Session errors.
var (
	ErrPartnershipRevoked = errors.New("partnership revoked")
	ErrNoPartnership      = errors.New("no active partnership")
	ErrAwaitingPeer       = errors.New("peer has not redeemed the pairing code yet")
)

// Integrity errors. These are absorbed by the receive path and never retried.
var (
	ErrDecryptionFailure = errors.New("envelope decryption failed")
	ErrMalformedPayload  = errors.New("malformed touch payload")
)

// Transport errors. The outbox retries these.
var (
	ErrDeliveryTimeout = errors.New("delivery timed out")
	ErrDeliveryFailed  = errors.New("delivery failed")
)

// ErrLocked is returned when the local identity has not been unlocked.
var ErrLocked = errors.New("identity is locked")
