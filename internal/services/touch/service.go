package touch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"heartline/internal/clock"
	"heartline/internal/codec"
	"heartline/internal/domain"
	"heartline/internal/haptic"
)

// Sealer encrypts and authenticates envelopes for a partnership.
type Sealer interface {
	Seal(p domain.Partnership, env domain.SealedEnvelope, plaintext []byte) (domain.SealedEnvelope, error)
	Open(p domain.Partnership, env domain.SealedEnvelope) ([]byte, error)
}

// Enqueuer accepts sealed envelopes for delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, env domain.SealedEnvelope) (domain.OutboxEntry, error)
}

// Service sends and receives touches.
//
// High-level flow:
//   - Send: load the active partnership, encode and seal the payload, record it
//     in the history and enqueue it for delivery.
//   - Receive: fetch envelopes, order them by send time, drop anything that is
//     not from an active partner, already seen, unauthenticated or malformed,
//     play the rest, then ack the whole batch. An authenticated unlink notice
//     revokes the partnership instead of playing.
type Service struct {
	ids      domain.IdentityProvider
	sessions domain.SessionService
	sealer   Sealer
	outbox   Enqueuer
	channel  domain.Channel
	history  domain.HistoryStore
	player   domain.HapticPlayer
	clock    clock.Clock
	log      *slog.Logger
}

// New constructs a touch service.
func New(
	ids domain.IdentityProvider,
	sessions domain.SessionService,
	sealer Sealer,
	outbox Enqueuer,
	channel domain.Channel,
	history domain.HistoryStore,
	player domain.HapticPlayer,
	clk clock.Clock,
	log *slog.Logger,
) *Service {
	return &Service{
		ids:      ids,
		sessions: sessions,
		sealer:   sealer,
		outbox:   outbox,
		channel:  channel,
		history:  history,
		player:   player,
		clock:    clk,
		log:      log,
	}
}

// SendGesture sends a catalog gesture at the given intensity.
func (s *Service) SendGesture(
	ctx context.Context,
	name domain.GestureName,
	intensity float64,
) (domain.SealedEnvelope, error) {
	g, err := codec.NewGesture(name, intensity)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}
	return s.send(ctx, g)
}

// SendPath sends a recorded drawing path.
func (s *Service) SendPath(ctx context.Context, path domain.Path) (domain.SealedEnvelope, error) {
	return s.send(ctx, path)
}

func (s *Service) send(ctx context.Context, payload domain.Payload) (domain.SealedEnvelope, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.SealedEnvelope{}, err
	}
	p, err := s.sessions.Active(ctx)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}
	plaintext, err := codec.Encode(payload)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}

	now := s.clock.Now().UTC()
	env := domain.SealedEnvelope{
		ID:       domain.EnvelopeID(uuid.NewString()),
		Sender:   local.ID,
		Receiver: p.Peer(local.ID),
		Kind:     payload.Kind(),
		// The associated data carries milliseconds only.
		SentAt: now.Truncate(time.Millisecond),
	}
	sealed, err := s.sealer.Seal(p, env, plaintext)
	if err != nil {
		return domain.SealedEnvelope{}, fmt.Errorf("seal: %w", err)
	}

	if _, err := s.history.AppendHistory(ctx, domain.HistoryRecord{
		EnvelopeID: sealed.ID,
		SessionID:  p.SessionID,
		Direction:  domain.DirectionOutgoing,
		Kind:       sealed.Kind,
		SentAt:     sealed.SentAt,
		RecordedAt: now,
	}); err != nil {
		return domain.SealedEnvelope{}, fmt.Errorf("record history: %w", err)
	}
	if _, err := s.outbox.Enqueue(ctx, sealed); err != nil {
		return domain.SealedEnvelope{}, err
	}

	s.log.Debug("touch queued",
		slog.String("session_id", p.SessionID.String()),
		slog.String("envelope_id", sealed.ID.String()),
		slog.String("kind", string(sealed.Kind)),
	)
	return sealed, nil
}

// Receive fetches up to limit envelopes and plays every valid one.
//
// Integrity failures are absorbed: the envelope is logged and dropped, and
// the batch is still acknowledged. Transport and local storage errors are
// returned without acking, so the batch is fetched again and the seen-id
// ledger filters what was already played.
func (s *Service) Receive(ctx context.Context, limit int) ([]domain.Delivered, error) {
	local, err := s.ids.Local()
	if err != nil {
		return nil, err
	}
	envs, err := s.channel.Fetch(ctx, local.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(envs) == 0 {
		return nil, nil
	}

	ordered := slices.Clone(envs)
	slices.SortStableFunc(ordered, func(a, b domain.SealedEnvelope) int {
		return a.SentAt.Compare(b.SentAt)
	})

	out := make([]domain.Delivered, 0, len(ordered))
	for _, env := range ordered {
		d, ok, err := s.accept(ctx, local.ID, env)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if err := s.player.Play(ctx, d.Instruction); err != nil {
			s.log.Warn("haptic playback failed",
				slog.String("envelope_id", env.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		out = append(out, d)
	}

	if err := s.channel.Ack(ctx, local.ID, len(envs)); err != nil {
		return out, fmt.Errorf("ack: %w", err)
	}
	return out, nil
}

// History returns recent touches exchanged with the active partner, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	p, err := s.sessions.Active(ctx)
	if err != nil {
		return nil, err
	}
	return s.history.History(ctx, p.SessionID, limit)
}

// accept runs the receive checks for one envelope. It reports false for an
// envelope that must be dropped; the error is reserved for local failures.
func (s *Service) accept(
	ctx context.Context,
	local domain.Identity,
	env domain.SealedEnvelope,
) (domain.Delivered, bool, error) {
	log := s.log.With(
		slog.String("envelope_id", env.ID.String()),
		slog.String("sender", env.Sender.String()),
	)

	if env.Receiver != local || env.Sender == local {
		log.Warn("touch dropped", slog.String("reason", "misaddressed"))
		return domain.Delivered{}, false, nil
	}
	p, ok, err := s.sessions.Get(ctx, env.Sender)
	if err != nil {
		return domain.Delivered{}, false, err
	}
	switch {
	case !ok:
		log.Warn("touch dropped", slog.String("reason", "unknown sender"))
		return domain.Delivered{}, false, nil
	case p.Status == domain.PartnershipRevoked:
		log.Warn("touch dropped", slog.String("reason", domain.ErrPartnershipRevoked.Error()))
		return domain.Delivered{}, false, nil
	case p.Status != domain.PartnershipActive:
		log.Warn("touch dropped", slog.String("reason", "partnership not active"))
		return domain.Delivered{}, false, nil
	}
	log = log.With(slog.String("session_id", p.SessionID.String()))

	seen, err := s.history.Seen(ctx, env.ID, domain.DirectionIncoming)
	if err != nil {
		return domain.Delivered{}, false, err
	}
	if seen {
		log.Debug("duplicate touch skipped")
		return domain.Delivered{}, false, nil
	}

	plaintext, err := s.sealer.Open(p, env)
	if err != nil {
		log.Warn("touch dropped", slog.String("error", err.Error()))
		return domain.Delivered{}, false, nil
	}
	if env.Kind == domain.KindUnlink {
		return domain.Delivered{}, false, s.applyUnlink(ctx, log, p, env)
	}
	payload, err := codec.Decode(env.Kind, plaintext)
	if err != nil {
		log.Warn("touch dropped", slog.String("error", err.Error()))
		return domain.Delivered{}, false, nil
	}
	instr, err := haptic.Translate(payload)
	if err != nil {
		log.Warn("touch dropped", slog.String("error", err.Error()))
		return domain.Delivered{}, false, nil
	}

	fresh, err := s.history.AppendHistory(ctx, domain.HistoryRecord{
		EnvelopeID: env.ID,
		SessionID:  p.SessionID,
		Direction:  domain.DirectionIncoming,
		Kind:       env.Kind,
		SentAt:     env.SentAt,
		RecordedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domain.Delivered{}, false, err
	}
	if !fresh {
		log.Debug("duplicate touch skipped")
		return domain.Delivered{}, false, nil
	}

	return domain.Delivered{
		EnvelopeID:  env.ID,
		From:        env.Sender,
		SentAt:      env.SentAt,
		Payload:     payload,
		Instruction: instr,
	}, true, nil
}

// applyUnlink revokes the partnership after an authenticated unlink notice.
// The revocation comes first so a failure leaves the notice to be fetched again.
func (s *Service) applyUnlink(
	ctx context.Context,
	log *slog.Logger,
	p domain.Partnership,
	env domain.SealedEnvelope,
) error {
	if _, err := s.sessions.PeerUnlinked(ctx, env.Sender); err != nil {
		return fmt.Errorf("apply unlink: %w", err)
	}
	if _, err := s.history.AppendHistory(ctx, domain.HistoryRecord{
		EnvelopeID: env.ID,
		SessionID:  p.SessionID,
		Direction:  domain.DirectionIncoming,
		Kind:       env.Kind,
		SentAt:     env.SentAt,
		RecordedAt: s.clock.Now().UTC(),
	}); err != nil {
		return err
	}
	log.Info("partner unlinked")
	return nil
}

var _ domain.TouchService = (*Service)(nil)
