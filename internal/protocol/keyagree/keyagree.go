package keyagree

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"heartline/internal/crypto"
	"heartline/internal/domain"
)

// KeySize is the length of a derived partnership key.
const KeySize = 32

var hkdfInfo = []byte("heartline/partnership/v1")

// ErrMissingPeerKey is returned when the partnership has no peer public key.
var ErrMissingPeerKey = errors.New("peer public key missing")

// DeriveKey derives the partnership key from local and peer X25519 material.
// Both peers obtain identical output for the same session.
func DeriveKey(
	localPriv domain.X25519Private,
	localPub domain.X25519Public,
	peerPub domain.X25519Public,
	session domain.SessionID,
) ([]byte, error) {
	if peerPub.IsZero() {
		return nil, ErrMissingPeerKey
	}
	shared, err := crypto.DH(localPriv, peerPub) // DH(IK_local, IK_peer)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}
	defer crypto.Wipe(shared[:])

	salt := sha256.Sum256([]byte(session))
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, shared[:], salt[:], transcript(localPub, peerPub))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

func transcript(a, b domain.X25519Public) []byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	info := make([]byte, 0, len(hkdfInfo)+64)
	info = append(info, hkdfInfo...)
	info = append(info, a[:]...)
	info = append(info, b[:]...)
	return info
}
