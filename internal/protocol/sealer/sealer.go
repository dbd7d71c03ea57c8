package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"heartline/internal/crypto"
	"heartline/internal/domain"
	"heartline/internal/protocol/keyagree"
)

const (
	// formatVersion is mixed into the associated data; bump on layout changes.
	formatVersion byte = 0x01

	NonceSize = chacha20poly1305.NonceSizeX
	TagSize   = chacha20poly1305.Overhead
)

type cacheKey struct {
	session domain.SessionID
	peer    domain.X25519Public
}

// Engine seals and opens envelopes for the local identity's partnerships.
// Derived keys are cached and never mutated after derivation.
type Engine struct {
	ids  domain.IdentityProvider
	rand io.Reader

	mu   sync.RWMutex
	keys map[cacheKey][]byte
}

// New returns an engine that derives keys from the provider's identity.
func New(ids domain.IdentityProvider) *Engine {
	return &Engine{ids: ids, rand: rand.Reader, keys: make(map[cacheKey][]byte)}
}

// Seal encrypts plaintext for env and returns env with Nonce, Ciphertext and
// AuthTag filled in. The routing fields of env must already be set.
func (e *Engine) Seal(p domain.Partnership, env domain.SealedEnvelope, plaintext []byte) (domain.SealedEnvelope, error) {
	if p.Status == domain.PartnershipRevoked {
		return domain.SealedEnvelope{}, domain.ErrPartnershipRevoked
	}
	if !p.Involves(env.Sender) || !p.Involves(env.Receiver) || env.Sender == env.Receiver {
		return domain.SealedEnvelope{}, fmt.Errorf("envelope %s does not belong to session %s", env.ID, p.SessionID)
	}
	aead, err := e.aead(p)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return domain.SealedEnvelope{}, fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, AssociatedData(p.SessionID, env))
	split := len(sealed) - TagSize

	env.Nonce = nonce
	env.Ciphertext = sealed[:split:split]
	env.AuthTag = sealed[split:]
	return env, nil
}

// Open authenticates and decrypts env. Any failure is ErrDecryptionFailure.
func (e *Engine) Open(p domain.Partnership, env domain.SealedEnvelope) ([]byte, error) {
	if len(env.Nonce) != NonceSize || len(env.AuthTag) != TagSize {
		return nil, domain.ErrDecryptionFailure
	}
	if !p.Involves(env.Sender) || !p.Involves(env.Receiver) {
		return nil, domain.ErrDecryptionFailure
	}
	aead, err := e.aead(p)
	if err != nil {
		return nil, domain.ErrDecryptionFailure
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)
	pt, err := aead.Open(nil, env.Nonce, sealed, AssociatedData(p.SessionID, env))
	if err != nil {
		return nil, domain.ErrDecryptionFailure
	}
	return pt, nil
}

// Forget drops cached key material for a session.
func (e *Engine) Forget(session domain.SessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, key := range e.keys {
		if k.session == session {
			crypto.Wipe(key)
			delete(e.keys, k)
		}
	}
}

func (e *Engine) aead(p domain.Partnership) (cipher.AEAD, error) {
	key, err := e.key(p)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

func (e *Engine) key(p domain.Partnership) ([]byte, error) {
	ck := cacheKey{session: p.SessionID, peer: p.PeerPublicKey}

	e.mu.RLock()
	key, ok := e.keys[ck]
	e.mu.RUnlock()
	if ok {
		return key, nil
	}

	local, err := e.ids.Local()
	if err != nil {
		return nil, err
	}
	if want := domain.NewSessionID(p.IdentityA, p.IdentityB); want != p.SessionID || !p.Involves(local.ID) {
		return nil, fmt.Errorf("partnership %s is not a local session", p.SessionID)
	}
	key, err = keyagree.DeriveKey(local.XPriv, local.XPub, p.PeerPublicKey, p.SessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.keys[ck]; ok {
		crypto.Wipe(key)
		return existing, nil
	}
	e.keys[ck] = key
	return key, nil
}

// AssociatedData returns the bytes authenticated alongside the payload.
// Variable-length fields are length-prefixed so no two headers collide.
func AssociatedData(session domain.SessionID, env domain.SealedEnvelope) []byte {
	ad := make([]byte, 0, 128)
	ad = append(ad, formatVersion)
	for _, field := range []string{
		string(session),
		string(env.Sender),
		string(env.Receiver),
		string(env.ID),
		string(env.Kind),
	} {
		ad = binary.BigEndian.AppendUint16(ad, uint16(len(field)))
		ad = append(ad, field...)
	}
	return binary.BigEndian.AppendUint64(ad, uint64(env.SentAt.UnixMilli()))
}
