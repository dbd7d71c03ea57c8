package mailbox

import (
	"context"
	"sync"

	"heartline/internal/domain"
)

// Memory is an in-process mailbox.
type Memory struct {
	mu     sync.Mutex
	queues map[domain.Identity][]domain.SealedEnvelope
}

// NewMemory returns an empty mailbox.
func NewMemory() *Memory {
	return &Memory{queues: make(map[domain.Identity][]domain.SealedEnvelope)}
}

// Deliver appends env to its receiver's queue.
func (m *Memory) Deliver(_ context.Context, env domain.SealedEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[env.Receiver] = append(m.queues[env.Receiver], env)
	return nil
}

// Fetch returns up to limit of the oldest envelopes for recipient.
func (m *Memory) Fetch(_ context.Context, recipient domain.Identity, limit int) ([]domain.SealedEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[recipient]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	return append([]domain.SealedEnvelope(nil), q...), nil
}

// Ack drops the first count envelopes for recipient.
func (m *Memory) Ack(_ context.Context, recipient domain.Identity, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[recipient]
	if count >= len(q) {
		delete(m.queues, recipient)
		return nil
	}
	if count > 0 {
		m.queues[recipient] = append([]domain.SealedEnvelope(nil), q[count:]...)
	}
	return nil
}

var _ domain.Channel = (*Memory)(nil)
