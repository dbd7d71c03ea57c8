package types

import "time"

// OutboxState is the delivery state of an outbound envelope.
type OutboxState string

const (
	OutboxQueued    OutboxState = "queued"
	OutboxInFlight  OutboxState = "inFlight"
	OutboxDelivered OutboxState = "delivered"
	OutboxFailed    OutboxState = "failed"
	OutboxAbandoned OutboxState = "abandoned"
)

// OutboxEntry tracks delivery of one sealed envelope.
type OutboxEntry struct {
	EnvelopeID    EnvelopeID  `json:"envelope_id"`
	SessionID     SessionID   `json:"session_id"`
	Attempts      int         `json:"attempts"`
	LastAttemptAt time.Time   `json:"last_attempt_at"`
	NextAttemptAt time.Time   `json:"next_attempt_at"`
	State         OutboxState `json:"state"`
	LastError     string      `json:"last_error,omitempty"`
}

// Direction marks a history record as sent or received.
type Direction string

const (
	DirectionOutgoing Direction = "out"
	DirectionIncoming Direction = "in"
)

// HistoryRecord is a durable entry in the local touch history.
type HistoryRecord struct {
	EnvelopeID EnvelopeID `json:"envelope_id"`
	SessionID  SessionID  `json:"session_id"`
	Direction  Direction  `json:"direction"`
	Kind       Kind       `json:"kind"`
	SentAt     time.Time  `json:"sent_at"`
	RecordedAt time.Time  `json:"recorded_at"`
}
