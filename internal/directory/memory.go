package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"heartline/internal/clock"
	"heartline/internal/domain"
)

// ClaimTTL is how long the consumer of a code has to post its acceptance.
const ClaimTTL = 10 * time.Minute

// claim records who may post the acceptance for a consumed code.
type claim struct {
	Owner domain.Identity `json:"owner"`
	Token string          `json:"token"`
}

type acceptanceKey struct {
	owner domain.Identity
	value string
}

func newClaim(owner domain.Identity) claim {
	return claim{Owner: owner, Token: uuid.NewString()}
}

type expiring[T any] struct {
	value   T
	expires time.Time
}

// Memory is an in-process Directory.
type Memory struct {
	clock clock.Clock

	mu          sync.Mutex
	codes       map[string]expiring[domain.PairingCode]
	owners      map[domain.Identity]expiring[string]
	claims      map[string]expiring[claim]
	acceptances map[acceptanceKey]expiring[domain.Acceptance]
}

// NewMemory returns an empty directory whose record lifetimes follow clk.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		clock:       clk,
		codes:       make(map[string]expiring[domain.PairingCode]),
		owners:      make(map[domain.Identity]expiring[string]),
		claims:      make(map[string]expiring[claim]),
		acceptances: make(map[acceptanceKey]expiring[domain.Acceptance]),
	}
}

func live[K comparable, T any](m map[K]expiring[T], k K, now time.Time) (T, bool) {
	e, ok := m[k]
	if !ok {
		var zero T
		return zero, false
	}
	if !now.Before(e.expires) {
		delete(m, k)
		var zero T
		return zero, false
	}
	return e.value, true
}

// PublishCode implements domain.Directory.
func (m *Memory) PublishCode(_ context.Context, code domain.PairingCode, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if _, ok := live(m.codes, code.Value, now); ok {
		return false, nil
	}
	m.codes[code.Value] = expiring[domain.PairingCode]{value: code, expires: now.Add(ttl)}
	return true, nil
}

// LookupCode implements domain.Directory.
func (m *Memory) LookupCode(_ context.Context, value string) (domain.PairingCode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := live(m.codes, value, m.clock.Now())
	return c, ok, nil
}

// ConsumeCode implements domain.Directory.
func (m *Memory) ConsumeCode(_ context.Context, value string) (domain.PairingCode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	c, ok := live(m.codes, value, now)
	if !ok {
		return domain.PairingCode{}, false, nil
	}
	delete(m.codes, value)

	cl := newClaim(c.Owner)
	m.claims[value] = expiring[claim]{value: cl, expires: now.Add(ClaimTTL)}
	c.Claim = cl.Token
	return c, true, nil
}

// DeleteCode implements domain.Directory.
func (m *Memory) DeleteCode(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.codes, value)
	return nil
}

// SwapOwnerCode implements domain.Directory.
func (m *Memory) SwapOwnerCode(_ context.Context, owner domain.Identity, value string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	prev, _ := live(m.owners, owner, now)
	m.owners[owner] = expiring[string]{value: value, expires: now.Add(ttl)}
	return prev, nil
}

// PostAcceptance implements domain.Directory. A matching claim is used up;
// a wrong one leaves it in place for the real consumer.
func (m *Memory) PostAcceptance(_ context.Context, acc domain.Acceptance, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	cl, ok := live(m.claims, acc.Code, now)
	if !ok || acc.Claim == "" || cl.Token != acc.Claim {
		return domain.ErrClaimRejected
	}
	delete(m.claims, acc.Code)

	acc.Claim = ""
	m.acceptances[acceptanceKey{cl.Owner, acc.Code}] = expiring[domain.Acceptance]{value: acc, expires: now.Add(ttl)}
	return nil
}

// LookupAcceptance implements domain.Directory.
func (m *Memory) LookupAcceptance(_ context.Context, owner domain.Identity, value string) (domain.Acceptance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := live(m.acceptances, acceptanceKey{owner, value}, m.clock.Now())
	return acc, ok, nil
}

// DeleteAcceptance implements domain.Directory.
func (m *Memory) DeleteAcceptance(_ context.Context, owner domain.Identity, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.acceptances, acceptanceKey{owner, value})
	return nil
}

var _ domain.Directory = (*Memory)(nil)
