package types

import "time"

// PairingCode is a short-lived numeric token published to the directory.
type PairingCode struct {
	Value          string       `json:"value"`
	Owner          Identity     `json:"owner"`
	OwnerPublicKey X25519Public `json:"owner_public_key"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	// Claim is set only on the copy returned to whoever consumed the code. It
	// authorizes exactly one acceptance for this code value.
	Claim string `json:"claim,omitempty"`
}

// Expired reports whether the code is no longer valid at now.
func (c PairingCode) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// Acceptance is posted to the directory by the peer that resolved a code,
// keyed by the code value, so the owner can complete the partnership.
type Acceptance struct {
	Code          string       `json:"code"`
	Claim         string       `json:"claim,omitempty"`
	Peer          Identity     `json:"peer"`
	PeerPublicKey X25519Public `json:"peer_public_key"`
	SessionID     SessionID    `json:"session_id"`
	AcceptedAt    time.Time    `json:"accepted_at"`
}
