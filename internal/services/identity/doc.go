// Package identity manages creation, encryption and unlocking of the local identity.
//
// It enforces the passphrase policy, assigns the installation-scoped identity
// id, generates the long-term X25519 key pair and persists it via the
// domain.IdentityStore. Once unlocked the identity is held in memory and served
// to the rest of the application through domain.IdentityProvider.
package identity
