package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"heartline/internal/clock"
	"heartline/internal/domain"
)

const (
	// AcceptanceTTL is how long an acceptance waits in the directory for the
	// code owner to complete pairing.
	AcceptanceTTL = 24 * time.Hour

	// codeRetention is how long past its expiry an issued code is kept in the
	// local ledger. It covers the acceptance lifetime plus the claim window.
	codeRetention = AcceptanceTTL + time.Hour

	noticeTimeout = 10 * time.Second
)

var (
	// ErrSessionMismatch is returned by Complete when the acceptance names a
	// session id that does not match the two identities.
	ErrSessionMismatch = errors.New("acceptance session id does not match")
	// ErrInvalidAcceptance is returned by Complete for an acceptance that does
	// not name the issued code or lacks the peer's identity or key.
	ErrInvalidAcceptance = errors.New("invalid acceptance")
)

// Revoker stops outbound delivery for a session.
type Revoker interface {
	Revoke(ctx context.Context, session domain.SessionID) error
}

// Sealer seals the unlink notice and drops derived keys for a session.
type Sealer interface {
	Seal(p domain.Partnership, env domain.SealedEnvelope, plaintext []byte) (domain.SealedEnvelope, error)
	Forget(session domain.SessionID)
}

// Service establishes and persists partnerships.
//
// This service handles:
//   - Issuing pairing codes and remembering which ones the local identity owns.
//   - Resolving a partner's pairing code and announcing the acceptance.
//   - Completing pairings from acceptances left under the codes we issued.
//   - Persisting each transition of the local partnership replica.
//   - Revoking a partnership, its queued deliveries and keys, and telling the peer.
type Service struct {
	ids     domain.IdentityProvider
	pairing domain.PairingService
	dir     domain.Directory
	store   domain.PartnershipStore
	codes   domain.IssuedCodeStore
	revoker Revoker
	sealer  Sealer
	channel domain.Channel
	clock   clock.Clock
	log     *slog.Logger

	// mu orders read-modify-write cycles on the partnership store.
	mu sync.Mutex
}

// New constructs a session service. revoker, sealer and channel may be nil;
// without a sealer and channel Unlink does not notify the peer.
func New(
	ids domain.IdentityProvider,
	pairing domain.PairingService,
	dir domain.Directory,
	store domain.PartnershipStore,
	codes domain.IssuedCodeStore,
	revoker Revoker,
	sealer Sealer,
	channel domain.Channel,
	clk clock.Clock,
	log *slog.Logger,
) *Service {
	return &Service{
		ids:     ids,
		pairing: pairing,
		dir:     dir,
		store:   store,
		codes:   codes,
		revoker: revoker,
		sealer:  sealer,
		channel: channel,
		clock:   clk,
		log:     log,
	}
}

// Establish records a partnership between local and peer with the given status.
//
// Revoked partnerships are terminal and cannot be re-established. An active
// partnership is never moved back to pending.
func (s *Service) Establish(
	_ context.Context,
	local domain.Identity,
	peer domain.Identity,
	peerKey domain.X25519Public,
	status domain.PartnershipStatus,
) (domain.Partnership, error) {
	if local == peer {
		return domain.Partnership{}, domain.ErrSelfPairing
	}
	if peerKey.IsZero() {
		return domain.Partnership{}, fmt.Errorf("peer %s has no public key", peer)
	}
	if status == domain.PartnershipRevoked {
		return domain.Partnership{}, fmt.Errorf("cannot establish a %s partnership", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.establishLocked(local, peer, peerKey, status)
}

func (s *Service) establishLocked(
	local domain.Identity,
	peer domain.Identity,
	peerKey domain.X25519Public,
	status domain.PartnershipStatus,
) (domain.Partnership, error) {
	sid := domain.NewSessionID(local, peer)
	existing, ok, err := s.store.LoadPartnership(sid)
	if err != nil {
		return domain.Partnership{}, err
	}

	a, b := local, peer
	if b < a {
		a, b = b, a
	}
	p := domain.Partnership{
		IdentityA:     a,
		IdentityB:     b,
		SessionID:     sid,
		LinkedAt:      s.clock.Now().UTC(),
		Status:        status,
		PeerPublicKey: peerKey,
	}
	if ok {
		switch {
		case existing.Status == domain.PartnershipRevoked:
			return domain.Partnership{}, domain.ErrPartnershipRevoked
		case existing.Status == domain.PartnershipActive && status == domain.PartnershipPending:
			return existing, nil
		}
		p.LinkedAt = existing.LinkedAt
	}

	if err := s.store.SavePartnership(p); err != nil {
		return domain.Partnership{}, err
	}
	s.log.Info("partnership recorded",
		slog.String("session_id", sid.String()),
		slog.String("status", string(status)),
	)
	return p, nil
}

// Offer issues a pairing code for the local identity and records it, so that
// Complete only honors acceptances for codes issued here.
func (s *Service) Offer(ctx context.Context) (domain.PairingCode, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.PairingCode{}, err
	}
	code, err := s.pairing.IssueCode(ctx, local.ID, local.XPub)
	if err != nil {
		return domain.PairingCode{}, err
	}
	if err := s.codes.RecordIssuedCode(ctx, code); err != nil {
		return domain.PairingCode{}, fmt.Errorf("record issued code: %w", err)
	}
	return code, nil
}

// Accept redeems a partner's pairing code.
//
// Steps:
//  1. Resolve and consume the code in the directory, receiving its claim.
//  2. Leave an acceptance carrying the claim, our identity and public key
//     under the code value for the owner.
//  3. Record the partnership as active on our side.
func (s *Service) Accept(ctx context.Context, code string) (domain.Partnership, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.Partnership{}, err
	}
	pc, err := s.pairing.ResolveCode(ctx, local.ID, code)
	if err != nil {
		return domain.Partnership{}, err
	}

	acc := domain.Acceptance{
		Code:          pc.Value,
		Claim:         pc.Claim,
		Peer:          local.ID,
		PeerPublicKey: local.XPub,
		SessionID:     domain.NewSessionID(local.ID, pc.Owner),
		AcceptedAt:    s.clock.Now().UTC(),
	}
	if err := s.dir.PostAcceptance(ctx, acc, AcceptanceTTL); err != nil {
		return domain.Partnership{}, fmt.Errorf("post acceptance: %w", err)
	}
	return s.Establish(ctx, local.ID, pc.Owner, pc.OwnerPublicKey, domain.PartnershipActive)
}

// Complete finishes pairing on the code owner's side for every code issued by
// Offer that a partner has redeemed.
//
// Steps, per recorded code:
//  1. Look up the acceptance left under the code value for us. A code whose
//     acceptance can no longer arrive is forgotten.
//  2. Check that the acceptance names the code, carries the peer's identity
//     and key, and agrees on the session id.
//  3. Record the partnership as pending, then activate it.
//  4. Only then delete the acceptance and forget the code.
//
// An acceptance that can never complete is discarded and its error reported.
// With nothing completed and nothing failed it returns ErrAwaitingPeer.
func (s *Service) Complete(ctx context.Context) ([]domain.Partnership, error) {
	local, err := s.ids.Local()
	if err != nil {
		return nil, err
	}
	codes, err := s.codes.IssuedCodes(ctx, local.ID)
	if err != nil {
		return nil, fmt.Errorf("list issued codes: %w", err)
	}

	now := s.clock.Now()
	var (
		done []domain.Partnership
		errs []error
	)
	for _, code := range codes {
		acc, ok, err := s.dir.LookupAcceptance(ctx, local.ID, code.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup acceptance: %w", err))
			continue
		}
		if !ok {
			if now.After(code.ExpiresAt.Add(codeRetention)) {
				s.forgetCode(ctx, local.ID, code.Value)
			}
			continue
		}

		p, err := s.completeOne(local.ID, code, acc)
		if err != nil {
			errs = append(errs, err)
			if !permanent(err) {
				continue
			}
			s.log.Warn("acceptance discarded",
				slog.String("peer", acc.Peer.String()),
				slog.String("error", err.Error()),
			)
		} else {
			done = append(done, p)
		}

		if err := s.dir.DeleteAcceptance(ctx, local.ID, code.Value); err != nil {
			s.log.Warn("delete acceptance", slog.String("error", err.Error()))
		}
		s.forgetCode(ctx, local.ID, code.Value)
	}

	if len(done) == 0 && len(errs) == 0 {
		return nil, domain.ErrAwaitingPeer
	}
	return done, errors.Join(errs...)
}

func (s *Service) completeOne(
	local domain.Identity,
	code domain.PairingCode,
	acc domain.Acceptance,
) (domain.Partnership, error) {
	switch {
	case acc.Code != code.Value:
		return domain.Partnership{}, fmt.Errorf("%w: names code %q", ErrInvalidAcceptance, acc.Code)
	case acc.Peer == "" || acc.PeerPublicKey.IsZero():
		return domain.Partnership{}, fmt.Errorf("%w: missing peer identity or key", ErrInvalidAcceptance)
	case acc.Peer == local:
		return domain.Partnership{}, domain.ErrSelfPairing
	}
	if want := domain.NewSessionID(local, acc.Peer); acc.SessionID != want {
		return domain.Partnership{}, fmt.Errorf("%w: got %s, want %s", ErrSessionMismatch, acc.SessionID, want)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.establishLocked(local, acc.Peer, acc.PeerPublicKey, domain.PartnershipPending)
	if err != nil {
		return domain.Partnership{}, err
	}
	if p.Status == domain.PartnershipActive {
		return p, nil
	}
	return s.establishLocked(local, acc.Peer, acc.PeerPublicKey, domain.PartnershipActive)
}

// permanent reports whether an acceptance failing with err can never complete.
func permanent(err error) bool {
	return errors.Is(err, ErrInvalidAcceptance) ||
		errors.Is(err, ErrSessionMismatch) ||
		errors.Is(err, domain.ErrSelfPairing) ||
		errors.Is(err, domain.ErrPartnershipRevoked)
}

func (s *Service) forgetCode(ctx context.Context, owner domain.Identity, value string) {
	if err := s.codes.ForgetIssuedCode(ctx, owner, value); err != nil {
		s.log.Warn("forget issued code", slog.String("error", err.Error()))
	}
}

// Unlink revokes the partnership with peer. Revocation is terminal; queued
// deliveries are abandoned, derived keys forgotten, and a sealed unlink
// notice is sent so the peer revokes its side too. Unlinking an already
// revoked partnership returns it unchanged and sends nothing.
func (s *Service) Unlink(ctx context.Context, peer domain.Identity) (domain.Partnership, error) {
	return s.revoke(ctx, peer, true)
}

// PeerUnlinked applies an authenticated unlink notice from peer. It revokes
// the local side like Unlink but does not notify back.
func (s *Service) PeerUnlinked(ctx context.Context, peer domain.Identity) (domain.Partnership, error) {
	return s.revoke(ctx, peer, false)
}

func (s *Service) revoke(ctx context.Context, peer domain.Identity, notify bool) (domain.Partnership, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.Partnership{}, err
	}
	sid := domain.NewSessionID(local.ID, peer)

	s.mu.Lock()
	p, ok, err := s.store.LoadPartnership(sid)
	if err != nil {
		s.mu.Unlock()
		return domain.Partnership{}, err
	}
	if !ok {
		s.mu.Unlock()
		return domain.Partnership{}, domain.ErrNoPartnership
	}

	var (
		notice   domain.SealedEnvelope
		noticeOK bool
	)
	if p.Status != domain.PartnershipRevoked {
		// The notice must be sealed while the partnership still allows it.
		if notify && s.sealer != nil && s.channel != nil {
			notice, err = s.unlinkNotice(local.ID, p)
			if err != nil {
				s.log.Warn("seal unlink notice", slog.String("error", err.Error()))
			}
			noticeOK = err == nil
		}
		p.Status = domain.PartnershipRevoked
		p.RevokedAt = s.clock.Now().UTC()
		if err := s.store.SavePartnership(p); err != nil {
			s.mu.Unlock()
			return domain.Partnership{}, err
		}
	}
	s.mu.Unlock()

	if s.sealer != nil {
		s.sealer.Forget(sid)
	}
	var revokeErr error
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, sid); err != nil {
			revokeErr = fmt.Errorf("revoke outbox: %w", err)
		}
	}
	if noticeOK {
		s.sendNotice(ctx, notice)
	}
	if revokeErr != nil {
		return p, revokeErr
	}

	s.log.Info("partnership revoked",
		slog.String("session_id", sid.String()),
		slog.Bool("by_peer", !notify),
	)
	return p, nil
}

func (s *Service) unlinkNotice(local domain.Identity, p domain.Partnership) (domain.SealedEnvelope, error) {
	env := domain.SealedEnvelope{
		ID:       domain.EnvelopeID(uuid.NewString()),
		Sender:   local,
		Receiver: p.Peer(local),
		Kind:     domain.KindUnlink,
		SentAt:   s.clock.Now().UTC().Truncate(time.Millisecond),
	}
	return s.sealer.Seal(p, env, nil)
}

// sendNotice delivers the unlink notice directly; the outbox for this
// session is already revoked. A failed notice leaves the peer to find out
// from undelivered touches.
func (s *Service) sendNotice(ctx context.Context, notice domain.SealedEnvelope) {
	ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
	defer cancel()
	if err := s.channel.Deliver(ctx, notice); err != nil {
		s.log.Warn("unlink notice not delivered",
			slog.String("envelope_id", notice.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Active returns the most recently linked active partnership. When none is
// active it returns ErrPartnershipRevoked if one was revoked, otherwise
// ErrNoPartnership.
func (s *Service) Active(_ context.Context) (domain.Partnership, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.Partnership{}, err
	}
	all, err := s.store.ListPartnerships()
	if err != nil {
		return domain.Partnership{}, err
	}
	revoked := false
	for _, p := range all {
		if !p.Involves(local.ID) {
			continue
		}
		switch p.Status {
		case domain.PartnershipActive:
			return p, nil
		case domain.PartnershipRevoked:
			revoked = true
		}
	}
	if revoked {
		return domain.Partnership{}, domain.ErrPartnershipRevoked
	}
	return domain.Partnership{}, domain.ErrNoPartnership
}

// Get returns the partnership with peer, if any.
func (s *Service) Get(_ context.Context, peer domain.Identity) (domain.Partnership, bool, error) {
	local, err := s.ids.Local()
	if err != nil {
		return domain.Partnership{}, false, err
	}
	return s.store.LoadPartnership(domain.NewSessionID(local.ID, peer))
}

// List returns every partnership of the local identity, most recent first.
func (s *Service) List(_ context.Context) ([]domain.Partnership, error) {
	local, err := s.ids.Local()
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListPartnerships()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Involves(local.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
