package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"heartline/internal/clock"
	"heartline/internal/domain"
)

// Config tunes retry timing.
type Config struct {
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	AttemptTimeout  time.Duration
	InFlightTimeout time.Duration

	// OnDelivered, if set, is called after an entry is delivered and removed.
	OnDelivered func(domain.OutboxEntry)
	// OnAbandoned, if set, is called for each entry dropped by Revoke.
	OnAbandoned func(domain.OutboxEntry, error)
}

// DefaultConfig returns the production retry timing.
func DefaultConfig() Config {
	return Config{
		BackoffBase:     time.Second,
		BackoffMax:      5 * time.Minute,
		AttemptTimeout:  10 * time.Second,
		InFlightTimeout: time.Minute,
	}
}

// Outbox owns the delivery workers.
type Outbox struct {
	store   domain.OutboxStore
	channel domain.Channel
	clock   clock.Clock
	log     *slog.Logger
	cfg     Config

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[domain.SessionID]*worker
	revoked map[domain.SessionID]bool
}

type worker struct {
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped outbox. Call Start to begin background delivery, or
// Flush for a one-shot pass. Zero timing fields in cfg take their defaults.
func New(store domain.OutboxStore, channel domain.Channel, clk clock.Clock, log *slog.Logger, cfg Config) *Outbox {
	def := DefaultConfig()
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.InFlightTimeout <= 0 {
		cfg.InFlightTimeout = def.InFlightTimeout
	}
	return &Outbox{
		store:   store,
		channel: channel,
		clock:   clk,
		log:     log,
		cfg:     cfg,
		workers: make(map[domain.SessionID]*worker),
		revoked: make(map[domain.SessionID]bool),
	}
}

// Start demotes entries stuck in flight and launches a worker for every
// session with pending entries.
func (o *Outbox) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return nil
	}

	n, err := o.store.DemoteStale(ctx, o.clock.Now().Add(-o.cfg.InFlightTimeout))
	if err != nil {
		return fmt.Errorf("demote stale entries: %w", err)
	}
	if n > 0 {
		o.log.Info("outbox demoted stale in-flight entries", slog.Int("count", n))
	}

	sessions, err := o.store.PendingSessions(ctx)
	if err != nil {
		return fmt.Errorf("list pending sessions: %w", err)
	}

	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, s := range sessions {
		if !o.revoked[s] {
			o.spawnLocked(s)
		}
	}
	return nil
}

// Stop cancels every worker and waits for them to exit. Entries that were in
// flight are demoted to failed so the next Start retries them.
func (o *Outbox) Stop() error {
	o.mu.Lock()
	if o.ctx == nil {
		o.mu.Unlock()
		return nil
	}
	o.cancel()
	workers := o.workers
	o.workers = make(map[domain.SessionID]*worker)
	o.ctx, o.cancel = nil, nil
	o.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}

	// Cutoff just past now so every in-flight entry qualifies.
	_, err := o.store.DemoteStale(context.Background(), o.clock.Now().Add(time.Nanosecond))
	if err != nil {
		return fmt.Errorf("demote in-flight entries: %w", err)
	}
	return nil
}

// Enqueue persists env as a queued entry and wakes its session's worker.
func (o *Outbox) Enqueue(ctx context.Context, env domain.SealedEnvelope) (domain.OutboxEntry, error) {
	session := domain.NewSessionID(env.Sender, env.Receiver)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.revoked[session] {
		return domain.OutboxEntry{}, domain.ErrPartnershipRevoked
	}

	now := o.clock.Now()
	entry := domain.OutboxEntry{
		EnvelopeID:    env.ID,
		SessionID:     session,
		NextAttemptAt: now,
		State:         domain.OutboxQueued,
	}
	if err := o.store.PutEntry(ctx, entry, env); err != nil {
		return domain.OutboxEntry{}, fmt.Errorf("persist outbox entry: %w", err)
	}

	if o.ctx != nil {
		w, ok := o.workers[session]
		if !ok {
			w = o.spawnLocked(session)
		}
		w.poke()
	}
	return entry, nil
}

// Revoke stops delivery for session for good. Remaining entries are marked
// abandoned and reported through OnAbandoned.
func (o *Outbox) Revoke(ctx context.Context, session domain.SessionID) error {
	o.mu.Lock()
	o.revoked[session] = true
	w, ok := o.workers[session]
	delete(o.workers, session)
	o.mu.Unlock()

	if ok {
		w.cancel()
		<-w.done
	}

	entries, err := o.store.ListEntries(ctx, session)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	for _, e := range entries {
		if e.State == domain.OutboxAbandoned {
			continue
		}
		e.State = domain.OutboxAbandoned
		e.LastError = domain.ErrPartnershipRevoked.Error()
		if err := o.store.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("abandon entry %s: %w", e.EnvelopeID, err)
		}
		o.log.Info("outbox entry abandoned",
			slog.String("session_id", session.String()),
			slog.String("envelope_id", e.EnvelopeID.String()),
		)
		if o.cfg.OnAbandoned != nil {
			o.cfg.OnAbandoned(e, domain.ErrPartnershipRevoked)
		}
	}
	return nil
}

// Flush makes one synchronous delivery pass over every pending session,
// ignoring backoff. Each session stops at its first failure. Flush is for
// short-lived processes that do not run background workers; while workers
// are running it only wakes them.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	if o.ctx != nil {
		for _, w := range o.workers {
			w.poke()
		}
		o.mu.Unlock()
		return nil
	}
	revoked := make(map[domain.SessionID]bool, len(o.revoked))
	for s := range o.revoked {
		revoked[s] = true
	}
	o.mu.Unlock()

	sessions, err := o.store.PendingSessions(ctx)
	if err != nil {
		return fmt.Errorf("list pending sessions: %w", err)
	}

	var errs []error
	for _, s := range sessions {
		if revoked[s] {
			continue
		}
		for {
			entry, env, ok, err := o.store.NextEntry(ctx, s)
			if err != nil {
				return fmt.Errorf("next entry: %w", err)
			}
			if !ok {
				break
			}
			if err := o.attempt(ctx, entry, env); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (o *Outbox) spawnLocked(session domain.SessionID) *worker {
	ctx, cancel := context.WithCancel(o.ctx)
	w := &worker{
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.workers[session] = w
	go o.run(ctx, session, w)
	return w
}

func (w *worker) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run drains one session's queue until ctx is cancelled.
func (o *Outbox) run(ctx context.Context, session domain.SessionID, w *worker) {
	defer close(w.done)
	log := o.log.With(slog.String("session_id", session.String()))

	for ctx.Err() == nil {
		entry, env, ok, err := o.store.NextEntry(ctx, session)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("outbox read failed", slog.Any("error", err))
			if !o.sleep(ctx, o.cfg.BackoffBase) {
				return
			}
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}
			continue
		}

		now := o.clock.Now()
		if entry.State == domain.OutboxInFlight {
			// Left in flight by a crashed or cancelled attempt.
			staleAt := entry.LastAttemptAt.Add(o.cfg.InFlightTimeout)
			if staleAt.After(now) {
				if !o.sleep(ctx, staleAt.Sub(now)) {
					return
				}
				continue
			}
			entry.State = domain.OutboxFailed
			entry.LastError = domain.ErrDeliveryTimeout.Error()
			if err := o.store.UpdateEntry(ctx, entry); err != nil && ctx.Err() == nil {
				log.Error("outbox demote failed", slog.Any("error", err))
			}
			log.Info("outbox demoted stale entry", slog.String("envelope_id", entry.EnvelopeID.String()))
			continue
		}

		if wait := entry.NextAttemptAt.Sub(now); wait > 0 {
			if !o.sleep(ctx, wait) {
				return
			}
			continue
		}

		_ = o.attempt(ctx, entry, env)
	}
}

// attempt makes one delivery attempt and records the outcome. A cancelled
// ctx leaves the entry in flight for Stop or Revoke to settle.
func (o *Outbox) attempt(ctx context.Context, entry domain.OutboxEntry, env domain.SealedEnvelope) error {
	log := o.log.With(
		slog.String("session_id", entry.SessionID.String()),
		slog.String("envelope_id", entry.EnvelopeID.String()),
	)

	entry.State = domain.OutboxInFlight
	entry.Attempts++
	entry.LastAttemptAt = o.clock.Now()
	if err := o.store.UpdateEntry(ctx, entry); err != nil {
		return fmt.Errorf("mark in flight: %w", err)
	}

	err := o.deliver(ctx, env)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err == nil {
		entry.State = domain.OutboxDelivered
		entry.LastError = ""
		if err := o.store.DeleteEntry(ctx, entry.EnvelopeID); err != nil {
			return fmt.Errorf("remove delivered entry: %w", err)
		}
		log.Debug("outbox delivered", slog.Int("attempts", entry.Attempts))
		if o.cfg.OnDelivered != nil {
			o.cfg.OnDelivered(entry)
		}
		return nil
	}

	wait := Backoff(o.cfg.BackoffBase, o.cfg.BackoffMax, entry.Attempts)
	entry.State = domain.OutboxFailed
	entry.LastError = err.Error()
	entry.NextAttemptAt = o.clock.Now().Add(wait)
	if uerr := o.store.UpdateEntry(ctx, entry); uerr != nil {
		return fmt.Errorf("record failure: %w", uerr)
	}
	log.Info("outbox delivery failed",
		slog.Int("attempts", entry.Attempts),
		slog.Duration("retry_in", wait),
		slog.Any("error", err),
	)
	return err
}

// deliver bounds a single Deliver call by the attempt timeout, even when the
// channel ignores its context.
func (o *Outbox) deliver(ctx context.Context, env domain.SealedEnvelope) error {
	actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- o.channel.Deliver(actx, env) }()

	select {
	case err := <-errc:
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return fmt.Errorf("%w: %w", domain.ErrDeliveryTimeout, err)
		case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrDeliveryTimeout):
			return err
		default:
			return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
		}
	case <-actx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.ErrDeliveryTimeout
	}
}

func (o *Outbox) sleep(ctx context.Context, d time.Duration) bool {
	t := o.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
