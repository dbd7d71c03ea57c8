package types

import "strings"

// Identity is the opaque, installation-scoped identifier of a user.
type Identity string

// String returns the string form of the identity.
func (id Identity) String() string { return string(id) }

// SessionID identifies a Partnership. Both peers compute it independently.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

// sessionSeparator joins the two sorted identities of a session id.
const sessionSeparator = "|"

// NewSessionID returns the canonical, order-independent session id for a and b.
func NewSessionID(a, b Identity) SessionID {
	if b < a {
		a, b = b, a
	}
	return SessionID(strings.Join([]string{a.String(), b.String()}, sessionSeparator))
}

// EnvelopeID uniquely identifies a touch envelope.
type EnvelopeID string

// String returns the string form of the envelope identifier.
func (id EnvelopeID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
