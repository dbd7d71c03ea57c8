package identity

import (
	"errors"
	"fmt"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"heartline/internal/clock"
	"heartline/internal/crypto"
	"heartline/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrIdentityExists is returned by GenerateIdentity when the store already
	// holds an identity. Overwriting it would orphan every partnership.
	ErrIdentityExists = errors.New("identity already exists")
)

// Service manages identity key creation and access using a backing store.
//
// The identity contains:
//   - An opaque, installation-scoped id (a random UUID).
//   - An X25519 key pair used to agree a key with each partner.
type Service struct {
	store domain.IdentityStore
	clock clock.Clock

	mu    sync.RWMutex
	local *domain.LocalIdentity
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore, clk clock.Clock) *Service {
	return &Service{store: s, clock: clk}
}

// GenerateIdentity creates a new identity, saves it encrypted with the passphrase,
// and returns the identity plus a short fingerprint of the X25519 public key.
// The new identity is left unlocked.
func (s *Service) GenerateIdentity(
	passphrase string,
) (domain.LocalIdentity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.LocalIdentity{}, "", ErrWeakPassphrase
	}
	exists, err := s.store.HasIdentity()
	if err != nil {
		return domain.LocalIdentity{}, "", err
	}
	if exists {
		return domain.LocalIdentity{}, "", ErrIdentityExists
	}

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.LocalIdentity{}, "", err
	}

	id := domain.LocalIdentity{
		ID:         domain.Identity(uuid.NewString()),
		XPub:       pub,
		XPriv:      priv,
		CreatedUTC: s.clock.Now().UTC().Unix(),
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.LocalIdentity{}, "", err
	}
	s.set(id)
	return id, crypto.Fingerprint(id.XPub.Slice()), nil
}

// Unlock decrypts the local identity and keeps it in memory for Local.
func (s *Service) Unlock(passphrase string) (domain.LocalIdentity, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return domain.LocalIdentity{}, err
	}
	s.set(id)
	return id, nil
}

// Local returns the unlocked identity, or ErrLocked.
func (s *Service) Local() (domain.LocalIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.local == nil {
		return domain.LocalIdentity{}, domain.ErrLocked
	}
	return *s.local, nil
}

// Lock wipes the in-memory private key.
func (s *Service) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local != nil {
		crypto.WipePrivate(&s.local.XPriv)
		s.local = nil
	}
}

// FingerprintIdentity returns a short fingerprint of the local X25519 public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	defer crypto.WipePrivate(&id.XPriv)
	return crypto.Fingerprint(id.XPub.Slice()), nil
}

func (s *Service) set(id domain.LocalIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local != nil {
		crypto.WipePrivate(&s.local.XPriv)
	}
	s.local = &id
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertions that Service implements the identity interfaces.
var (
	_ domain.IdentityService  = (*Service)(nil)
	_ domain.IdentityProvider = (*Service)(nil)
)
