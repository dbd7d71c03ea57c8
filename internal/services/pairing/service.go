package pairing

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"heartline/internal/clock"
	"heartline/internal/domain"
)

const (
	// CodeDigits is the length of a pairing code.
	CodeDigits = 6

	codeSpace = 1_000_000

	// expiredRetention keeps expired codes in the directory for a while so a
	// late resolver is told the code expired rather than that it never existed.
	expiredRetention = time.Hour
)

// Config tunes code lifetime and directory access.
type Config struct {
	CodeTTL        time.Duration
	RequestTimeout time.Duration
	// MaxAttempts bounds how many random values IssueCode tries before
	// giving up with ErrCodeSpaceExhausted.
	MaxAttempts int
}

// DefaultConfig returns a one hour code lifetime and a 10s request timeout.
func DefaultConfig() Config {
	return Config{
		CodeTTL:        time.Hour,
		RequestTimeout: 10 * time.Second,
		MaxAttempts:    16,
	}
}

// Service issues and resolves pairing codes against a directory.
type Service struct {
	dir   domain.Directory
	clock clock.Clock
	log   *slog.Logger
	cfg   Config
	rand  io.Reader
	locks keyedMutex
}

// New returns a pairing service. Zero fields in cfg take their defaults.
func New(dir domain.Directory, clk clock.Clock, log *slog.Logger, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = def.CodeTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Service{dir: dir, clock: clk, log: log, cfg: cfg, rand: rand.Reader}
}

// IssueCode publishes a fresh code for owner and invalidates the code owner
// held before.
//
// Steps:
//  1. Draw a random six digit value and publish it with set-if-absent. A value
//     held by an expired code is purged and retried once; a live collision
//     draws a new value, up to MaxAttempts times.
//  2. Swap the owner index to the new value.
//  3. Delete the previous code, but only if it still belongs to owner.
//
// Issues for the same owner are serialized so the last writer wins.
func (s *Service) IssueCode(
	ctx context.Context,
	owner domain.Identity,
	ownerKey domain.X25519Public,
) (domain.PairingCode, error) {
	unlock := s.locks.Lock(owner.String())
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	now := s.clock.Now()
	keep := s.cfg.CodeTTL + expiredRetention

	var code domain.PairingCode
	published := false
	for attempt := 0; attempt < s.cfg.MaxAttempts && !published; attempt++ {
		value, err := s.randomCode()
		if err != nil {
			return domain.PairingCode{}, err
		}
		code = domain.PairingCode{
			Value:          value,
			Owner:          owner,
			OwnerPublicKey: ownerKey,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.cfg.CodeTTL),
		}
		published, err = s.publish(ctx, code, keep, now)
		if err != nil {
			return domain.PairingCode{}, err
		}
	}
	if !published {
		return domain.PairingCode{}, domain.ErrCodeSpaceExhausted
	}

	prev, err := s.dir.SwapOwnerCode(ctx, owner, code.Value, keep)
	if err != nil {
		return domain.PairingCode{}, fmt.Errorf("swap owner code: %w", err)
	}
	if prev != "" && prev != code.Value {
		if err := s.invalidate(ctx, owner, prev); err != nil {
			return domain.PairingCode{}, err
		}
	}

	s.log.Info("pairing code issued",
		slog.String("owner", owner.String()),
		slog.Time("expires_at", code.ExpiresAt),
	)
	return code, nil
}

// ResolveCode looks up and consumes a code on behalf of resolver.
//
// A malformed or unknown code is ErrCodeNotFound. An expired code is deleted
// and reported as ErrCodeExpired. Resolving your own code is ErrSelfPairing
// and leaves the code in place.
func (s *Service) ResolveCode(
	ctx context.Context,
	resolver domain.Identity,
	value string,
) (domain.PairingCode, error) {
	if !ValidCode(value) {
		return domain.PairingCode{}, domain.ErrCodeNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	now := s.clock.Now()
	code, ok, err := s.dir.LookupCode(ctx, value)
	if err != nil {
		return domain.PairingCode{}, fmt.Errorf("lookup code: %w", err)
	}
	if !ok {
		return domain.PairingCode{}, domain.ErrCodeNotFound
	}
	if code.Expired(now) {
		if err := s.dir.DeleteCode(ctx, value); err != nil {
			s.log.Warn("purge expired code", slog.String("error", err.Error()))
		}
		return domain.PairingCode{}, domain.ErrCodeExpired
	}
	if code.Owner == resolver {
		return domain.PairingCode{}, domain.ErrSelfPairing
	}

	code, ok, err = s.dir.ConsumeCode(ctx, value)
	if err != nil {
		return domain.PairingCode{}, fmt.Errorf("consume code: %w", err)
	}
	if !ok {
		// Someone else consumed it between lookup and consume.
		return domain.PairingCode{}, domain.ErrCodeNotFound
	}
	if code.Expired(now) {
		return domain.PairingCode{}, domain.ErrCodeExpired
	}

	s.log.Info("pairing code resolved",
		slog.String("owner", code.Owner.String()),
		slog.String("resolver", resolver.String()),
	)
	return code, nil
}

// ValidCode reports whether value has the shape of a pairing code.
func ValidCode(value string) bool {
	if len(value) != CodeDigits {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// publish stores code if its value is free, purging an expired occupant first.
func (s *Service) publish(ctx context.Context, code domain.PairingCode, keep time.Duration, now time.Time) (bool, error) {
	ok, err := s.dir.PublishCode(ctx, code, keep)
	if err != nil {
		return false, fmt.Errorf("publish code: %w", err)
	}
	if ok {
		return true, nil
	}

	existing, found, err := s.dir.LookupCode(ctx, code.Value)
	if err != nil {
		return false, fmt.Errorf("lookup code: %w", err)
	}
	if found && !existing.Expired(now) {
		return false, nil
	}
	if found {
		if err := s.dir.DeleteCode(ctx, code.Value); err != nil {
			return false, fmt.Errorf("purge expired code: %w", err)
		}
	}
	ok, err = s.dir.PublishCode(ctx, code, keep)
	if err != nil {
		return false, fmt.Errorf("publish code: %w", err)
	}
	return ok, nil
}

// invalidate deletes value if the directory still attributes it to owner.
func (s *Service) invalidate(ctx context.Context, owner domain.Identity, value string) error {
	old, found, err := s.dir.LookupCode(ctx, value)
	if err != nil {
		return fmt.Errorf("lookup previous code: %w", err)
	}
	if !found || old.Owner != owner {
		return nil
	}
	if err := s.dir.DeleteCode(ctx, value); err != nil {
		return fmt.Errorf("delete previous code: %w", err)
	}
	return nil
}

// randomCode draws a uniform value in [0, 10^6) by rejection sampling.
func (s *Service) randomCode() (string, error) {
	const limit = (1 << 32) / codeSpace * codeSpace
	var b [4]byte
	for {
		if _, err := io.ReadFull(s.rand, b[:]); err != nil {
			return "", fmt.Errorf("code entropy: %w", err)
		}
		if v := binary.BigEndian.Uint32(b[:]); v < limit {
			return fmt.Sprintf("%0*d", CodeDigits, v%codeSpace), nil
		}
	}
}

var _ domain.PairingService = (*Service)(nil)
