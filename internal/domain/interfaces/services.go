package interfaces

import (
	"context"

	domaintypes "heartline/internal/domain/types"
)

// IdentityService creates and unlocks the local identity.
type IdentityService interface {
	GenerateIdentity(passphrase string) (domaintypes.LocalIdentity, domaintypes.Fingerprint, error)
	Unlock(passphrase string) (domaintypes.LocalIdentity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// IdentityProvider supplies the unlocked local identity to other components.
type IdentityProvider interface {
	Local() (domaintypes.LocalIdentity, error)
}

// PairingService issues and resolves pairing codes.
type PairingService interface {
	IssueCode(
		ctx context.Context,
		owner domaintypes.Identity,
		ownerKey domaintypes.X25519Public,
	) (domaintypes.PairingCode, error)
	ResolveCode(ctx context.Context, resolver domaintypes.Identity, value string) (domaintypes.PairingCode, error)
}

// SessionService establishes, looks up and revokes partnerships.
type SessionService interface {
	Establish(
		ctx context.Context,
		local domaintypes.Identity,
		peer domaintypes.Identity,
		peerKey domaintypes.X25519Public,
		status domaintypes.PartnershipStatus,
	) (domaintypes.Partnership, error)
	// Offer issues a pairing code for the local identity and remembers it.
	Offer(ctx context.Context) (domaintypes.PairingCode, error)
	Accept(ctx context.Context, code string) (domaintypes.Partnership, error)
	// Complete activates every partnership whose acceptance names a code from Offer.
	Complete(ctx context.Context) ([]domaintypes.Partnership, error)
	Unlink(ctx context.Context, peer domaintypes.Identity) (domaintypes.Partnership, error)
	// PeerUnlinked revokes the local side after the peer's authenticated unlink notice.
	PeerUnlinked(ctx context.Context, peer domaintypes.Identity) (domaintypes.Partnership, error)
	Active(ctx context.Context) (domaintypes.Partnership, error)
	Get(ctx context.Context, peer domaintypes.Identity) (domaintypes.Partnership, bool, error)
}

// TouchService sends touches to the partner and plays received ones.
type TouchService interface {
	SendGesture(ctx context.Context, name domaintypes.GestureName, intensity float64) (domaintypes.SealedEnvelope, error)
	SendPath(ctx context.Context, path domaintypes.Path) (domaintypes.SealedEnvelope, error)
	Receive(ctx context.Context, limit int) ([]domaintypes.Delivered, error)
}
