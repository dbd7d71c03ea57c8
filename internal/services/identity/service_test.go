package identity_test

import (
	"errors"
	"testing"
	"time"

	"heartline/internal/clock"
	"heartline/internal/domain"
	"heartline/internal/services/identity"
	"heartline/internal/store"
)

const strong = "Correct-Horse-42"

func newService(t *testing.T) *identity.Service {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return identity.New(store.NewIdentityFileStore(t.TempDir()), clk)
}

func TestGenerateIdentity_RejectsWeakPassphrase(t *testing.T) {
	svc := newService(t)
	for _, p := range []string{"short", "alllowercase-123", "NoDigitsHere!!", "NoSymbols12345"} {
		if _, _, err := svc.GenerateIdentity(p); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Fatalf("%q: expected ErrWeakPassphrase, got %v", p, err)
		}
	}
}

func TestGenerateIdentity_UnlocksAndPersists(t *testing.T) {
	dir := t.TempDir()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := identity.New(store.NewIdentityFileStore(dir), clk)

	id, fp, err := svc.GenerateIdentity(strong)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if id.ID == "" || id.XPub.IsZero() {
		t.Fatalf("identity not populated: %+v", id)
	}
	if id.CreatedUTC != clk.Now().Unix() {
		t.Fatalf("CreatedUTC = %d", id.CreatedUTC)
	}
	local, err := svc.Local()
	if err != nil || local.ID != id.ID {
		t.Fatalf("Local after generate: %v %v", local.ID, err)
	}

	// A fresh service over the same directory starts locked.
	again := identity.New(store.NewIdentityFileStore(dir), clk)
	if _, err := again.Local(); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	unlocked, err := again.Unlock(strong)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if unlocked.ID != id.ID || unlocked.XPub != id.XPub || unlocked.XPriv != id.XPriv {
		t.Fatal("unlocked identity differs from generated one")
	}
	got, err := again.FingerprintIdentity(strong)
	if err != nil || got != fp {
		t.Fatalf("fingerprint = %q, %v; want %q", got, err, fp)
	}
}

func TestGenerateIdentity_RefusesOverwrite(t *testing.T) {
	svc := newService(t)
	if _, _, err := svc.GenerateIdentity(strong); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.GenerateIdentity(strong); !errors.Is(err, identity.ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestUnlock_WrongPassphrase(t *testing.T) {
	svc := newService(t)
	if _, _, err := svc.GenerateIdentity(strong); err != nil {
		t.Fatal(err)
	}
	svc.Lock()
	if _, err := svc.Unlock("Wrong-Horse-42"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
	if _, err := svc.Local(); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected ErrLocked after failed unlock, got %v", err)
	}
}
