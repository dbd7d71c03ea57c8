// Package session links two identities into a partnership and tracks its
// lifecycle.
//
// A partnership is keyed by a session id both sides compute on their own from
// the sorted pair of identities. The resolver of a pairing code activates the
// partnership immediately and leaves an acceptance in the directory; the code
// owner picks it up with Complete. Unlink revokes a partnership for good and
// stops any delivery still queued for it.
package session
