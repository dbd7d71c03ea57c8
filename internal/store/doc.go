// Package store provides local persistence for heartline.
//
// Small documents live as JSON files under the user's home directory and are
// replaced atomically on write:
//   - the local identity (IdentityFileStore), sealed under a passphrase
//   - partnerships (PartnershipFileStore)
//
// The outbox queue and the touch history live in a SQLite database (SQLite),
// which also serves as the ledger of envelope ids already received.
//
// All stores are safe for concurrent use.
package store
