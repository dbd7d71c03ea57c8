package domain

import (
	interfaces "heartline/internal/domain/interfaces"
	types "heartline/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Identity          = types.Identity
	SessionID         = types.SessionID
	EnvelopeID        = types.EnvelopeID
	Fingerprint       = types.Fingerprint
	LocalIdentity     = types.LocalIdentity
	X25519Public      = types.X25519Public
	X25519Private     = types.X25519Private
	PairingCode       = types.PairingCode
	Acceptance        = types.Acceptance
	PartnershipStatus = types.PartnershipStatus
	Partnership       = types.Partnership
	Kind              = types.Kind
	GestureName       = types.GestureName
	Payload           = types.Payload
	Gesture           = types.Gesture
	PathPoint         = types.PathPoint
	Path              = types.Path
	SealedEnvelope    = types.SealedEnvelope
	Pulse             = types.Pulse
	HapticInstruction = types.HapticInstruction
	Delivered         = types.Delivered
	OutboxState       = types.OutboxState
	OutboxEntry       = types.OutboxEntry
	Direction         = types.Direction
	HistoryRecord     = types.HistoryRecord
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService  = interfaces.IdentityService
	IdentityProvider = interfaces.IdentityProvider
	PairingService   = interfaces.PairingService
	SessionService   = interfaces.SessionService
	TouchService     = interfaces.TouchService
	IdentityStore    = interfaces.IdentityStore
	PartnershipStore = interfaces.PartnershipStore
	IssuedCodeStore  = interfaces.IssuedCodeStore
	OutboxStore      = interfaces.OutboxStore
	HistoryStore     = interfaces.HistoryStore
	Directory        = interfaces.Directory
	Channel          = interfaces.Channel
	HapticPlayer     = interfaces.HapticPlayer
)

// Constants re-exported from the types subpackage.
const (
	PartnershipPending = types.PartnershipPending
	PartnershipActive  = types.PartnershipActive
	PartnershipRevoked = types.PartnershipRevoked

	KindGesture = types.KindGesture
	KindPath    = types.KindPath
	KindUnlink  = types.KindUnlink

	GestureTap       = types.GestureTap
	GestureDoubleTap = types.GestureDoubleTap
	GestureHeartbeat = types.GestureHeartbeat
	GestureHug       = types.GestureHug
	GestureKiss      = types.GestureKiss
	GestureSqueeze   = types.GestureSqueeze
	GestureWave      = types.GestureWave
	GesturePoke      = types.GesturePoke

	OutboxQueued    = types.OutboxQueued
	OutboxInFlight  = types.OutboxInFlight
	OutboxDelivered = types.OutboxDelivered
	OutboxFailed    = types.OutboxFailed
	OutboxAbandoned = types.OutboxAbandoned

	DirectionOutgoing = types.DirectionOutgoing
	DirectionIncoming = types.DirectionIncoming
)

// Variables re-exported from the types subpackage.
var Gestures = types.Gestures

// NewSessionID returns the canonical session id for two identities.
func NewSessionID(a, b Identity) SessionID { return types.NewSessionID(a, b) }
