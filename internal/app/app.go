package app

import (
	"context"
	"errors"
	"fmt"

	"heartline/internal/crypto"
	"heartline/internal/domain"
)

// Status summarizes the local identity and its partnerships.
type Status struct {
	Identity     domain.LocalIdentity
	Fingerprint  domain.Fingerprint
	Partnerships []PartnershipStatus
	// Pending counts outbound touches not yet delivered.
	Pending int
}

// PartnershipStatus is one partnership as shown to the user.
type PartnershipStatus struct {
	domain.Partnership
	Partner      domain.Identity
	SafetyNumber string
}

// Unlock decrypts the local identity for the services that need it.
func (w *Wire) Unlock(passphrase string) (domain.LocalIdentity, error) {
	if passphrase == "" {
		return domain.LocalIdentity{}, errors.New("passphrase required (-p)")
	}
	return w.Identity.Unlock(passphrase)
}

// Sync completes pending pairings whose partners have accepted, then makes
// one delivery pass over the outbox. It is the background work a
// short-lived command does before exiting.
func (w *Wire) Sync(ctx context.Context) error {
	done, err := w.Sessions.Complete(ctx)
	if err != nil && !errors.Is(err, domain.ErrAwaitingPeer) {
		w.Log.Warn("complete pairing", "error", err)
	}
	for _, p := range done {
		w.Log.Debug("pairing completed", "session_id", p.SessionID.String())
	}
	return w.Outbox.Flush(ctx)
}

// Status reports the unlocked identity, its partnerships and queued touches.
func (w *Wire) Status(ctx context.Context) (Status, error) {
	local, err := w.Identity.Local()
	if err != nil {
		return Status{}, err
	}
	all, err := w.Sessions.List(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{Identity: local, Fingerprint: crypto.Fingerprint(local.XPub.Slice())}
	for _, p := range all {
		st.Partnerships = append(st.Partnerships, PartnershipStatus{
			Partnership:  p,
			Partner:      p.Peer(local.ID),
			SafetyNumber: crypto.SafetyNumber(p.SessionID, local.XPub, p.PeerPublicKey),
		})
		entries, err := w.DB.ListEntries(ctx, p.SessionID)
		if err != nil {
			return Status{}, fmt.Errorf("list outbox: %w", err)
		}
		for _, e := range entries {
			if e.State != domain.OutboxAbandoned {
				st.Pending++
			}
		}
	}
	return st, nil
}

// Close stops background delivery and releases the database.
func (w *Wire) Close() error {
	return errors.Join(w.Outbox.Stop(), w.DB.Close())
}
