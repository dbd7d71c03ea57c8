package interfaces

import (
	"context"
	"time"

	domaintypes "heartline/internal/domain/types"
)

// IdentityStore persists the local identity keys, sealed under a passphrase.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.LocalIdentity) error
	LoadIdentity(passphrase string) (domaintypes.LocalIdentity, error)
	HasIdentity() (bool, error)
}

// PartnershipStore keeps the local replica of each partnership.
type PartnershipStore interface {
	SavePartnership(p domaintypes.Partnership) error
	LoadPartnership(session domaintypes.SessionID) (domaintypes.Partnership, bool, error)
	ListPartnerships() ([]domaintypes.Partnership, error)
}

// IssuedCodeStore remembers the pairing codes the local identity issued, so
// only acceptances for those codes complete a partnership.
type IssuedCodeStore interface {
	RecordIssuedCode(ctx context.Context, code domaintypes.PairingCode) error
	IssuedCodes(ctx context.Context, owner domaintypes.Identity) ([]domaintypes.PairingCode, error)
	ForgetIssuedCode(ctx context.Context, owner domaintypes.Identity, value string) error
}

// OutboxStore is the durable queue behind the outbox.
type OutboxStore interface {
	// PutEntry appends a queued entry and its envelope.
	PutEntry(ctx context.Context, entry domaintypes.OutboxEntry, env domaintypes.SealedEnvelope) error
	// NextEntry returns the oldest undelivered, non-abandoned entry for a session.
	NextEntry(ctx context.Context, session domaintypes.SessionID) (
		domaintypes.OutboxEntry,
		domaintypes.SealedEnvelope,
		bool,
		error,
	)
	UpdateEntry(ctx context.Context, entry domaintypes.OutboxEntry) error
	DeleteEntry(ctx context.Context, id domaintypes.EnvelopeID) error
	ListEntries(ctx context.Context, session domaintypes.SessionID) ([]domaintypes.OutboxEntry, error)
	// DemoteStale moves inFlight entries last attempted before cutoff back to failed.
	DemoteStale(ctx context.Context, cutoff time.Time) (int, error)
	// PendingSessions lists sessions with entries still awaiting delivery.
	PendingSessions(ctx context.Context) ([]domaintypes.SessionID, error)
}

// HistoryStore is the durable touch history; it doubles as the dedupe ledger.
type HistoryStore interface {
	// AppendHistory records rec and reports false if the same envelope id and
	// direction were already recorded.
	AppendHistory(ctx context.Context, rec domaintypes.HistoryRecord) (bool, error)
	Seen(ctx context.Context, id domaintypes.EnvelopeID, dir domaintypes.Direction) (bool, error)
	History(ctx context.Context, session domaintypes.SessionID, limit int) ([]domaintypes.HistoryRecord, error)
}
