package types

import "time"

// PartnershipStatus is the lifecycle state of a Partnership.
type PartnershipStatus string

const (
	PartnershipPending PartnershipStatus = "pending"
	PartnershipActive  PartnershipStatus = "active"
	PartnershipRevoked PartnershipStatus = "revoked"
)

// Partnership is the local replica of a pairing between two identities.
type Partnership struct {
	IdentityA     Identity          `json:"identity_a"`
	IdentityB     Identity          `json:"identity_b"`
	SessionID     SessionID         `json:"session_id"`
	LinkedAt      time.Time         `json:"linked_at"`
	Status        PartnershipStatus `json:"status"`
	PeerPublicKey X25519Public      `json:"peer_public_key"`
	RevokedAt     time.Time         `json:"revoked_at,omitzero"`
}

// Peer returns the identity in the partnership that is not local.
func (p Partnership) Peer(local Identity) Identity {
	if p.IdentityA == local {
		return p.IdentityB
	}
	return p.IdentityA
}

// Involves reports whether id is one of the two partners.
func (p Partnership) Involves(id Identity) bool {
	return p.IdentityA == id || p.IdentityB == id
}
