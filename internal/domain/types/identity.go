package types

// LocalIdentity holds the local user's identifier and long-term X25519 keys.
type LocalIdentity struct {
	ID         Identity      `json:"id"`
	XPub       X25519Public  `json:"xpub"`
	XPriv      X25519Private `json:"xpriv"`
	CreatedUTC int64         `json:"created_utc"`
}
