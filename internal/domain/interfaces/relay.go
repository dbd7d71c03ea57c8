package interfaces

import (
	"context"
	"time"

	domaintypes "heartline/internal/domain/types"
)

// Directory is the shared key/value service pairing codes are published to.
type Directory interface {
	// PublishCode stores code under its value if the value is free. It reports
	// false without writing when the value is already taken.
	PublishCode(ctx context.Context, code domaintypes.PairingCode, ttl time.Duration) (bool, error)
	LookupCode(ctx context.Context, value string) (domaintypes.PairingCode, bool, error)
	// ConsumeCode atomically fetches and deletes the code. The returned copy
	// carries a fresh Claim that PostAcceptance requires for this value.
	ConsumeCode(ctx context.Context, value string) (domaintypes.PairingCode, bool, error)
	DeleteCode(ctx context.Context, value string) error
	// SwapOwnerCode records value as owner's current code and returns the previous one.
	SwapOwnerCode(
		ctx context.Context,
		owner domaintypes.Identity,
		value string,
		ttl time.Duration,
	) (string, error)

	// PostAcceptance stores acc under acc.Code for the code's owner. It fails
	// with ErrClaimRejected unless acc.Claim is the live claim handed out when
	// the code was consumed; a claim is good for one acceptance.
	PostAcceptance(ctx context.Context, acc domaintypes.Acceptance, ttl time.Duration) error
	// LookupAcceptance returns the acceptance for value if it is addressed to owner.
	LookupAcceptance(
		ctx context.Context,
		owner domaintypes.Identity,
		value string,
	) (domaintypes.Acceptance, bool, error)
	DeleteAcceptance(ctx context.Context, owner domaintypes.Identity, value string) error
}

// Channel carries sealed envelopes from sender to receiver, best effort.
type Channel interface {
	Deliver(ctx context.Context, env domaintypes.SealedEnvelope) error
	Fetch(ctx context.Context, recipient domaintypes.Identity, limit int) ([]domaintypes.SealedEnvelope, error)
	// Ack drops the first count envelopes returned by Fetch.
	Ack(ctx context.Context, recipient domaintypes.Identity, count int) error
}

// HapticPlayer renders a haptic instruction on the device.
type HapticPlayer interface {
	Play(ctx context.Context, instr domaintypes.HapticInstruction) error
}
