package app_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/app"
	"heartline/internal/clock"
	"heartline/internal/config"
	"heartline/internal/directory"
	"heartline/internal/domain"
	"heartline/internal/logging"
	"heartline/internal/mailbox"
	"heartline/internal/relay"
)

const passphrase = "Correct-Horse-42"

func startRelay(t *testing.T) string {
	t.Helper()
	srv := relay.NewServer(relay.ServerConfig{}, directory.NewMemory(clock.Real()), mailbox.NewMemory(), logging.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return "http://" + ln.Addr().String()
}

func newWire(t *testing.T, relayURL string) (*app.Wire, domain.LocalIdentity) {
	t.Helper()
	cfg := config.Default()
	cfg.Home = t.TempDir()
	cfg.RelayURL = relayURL

	w, err := app.NewWire(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	id, _, err := w.Identity.GenerateIdentity(passphrase)
	require.NoError(t, err)
	return w, id
}

func TestWire_PairAndTouchThroughRelay(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)
	alice, aliceID := newWire(t, url)
	bob, bobID := newWire(t, url)

	code, err := alice.Sessions.Offer(ctx)
	require.NoError(t, err)

	// Bob redeems before Alice completes; both sides end up active.
	accepted, err := bob.Sessions.Accept(ctx, code.Value)
	require.NoError(t, err)
	require.NoError(t, alice.Sync(ctx))
	completed, err := alice.Sessions.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, accepted.SessionID, completed.SessionID)

	sent, err := alice.Touch.SendGesture(ctx, domain.GestureHug, 0.8)
	require.NoError(t, err)
	require.NoError(t, alice.Sync(ctx))

	got, err := bob.Touch.Receive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].EnvelopeID)
	assert.Equal(t, aliceID.ID, got[0].From)

	aliceStatus, err := alice.Status(ctx)
	require.NoError(t, err)
	bobStatus, err := bob.Status(ctx)
	require.NoError(t, err)
	require.Len(t, aliceStatus.Partnerships, 1)
	require.Len(t, bobStatus.Partnerships, 1)
	assert.Equal(t, bobID.ID, aliceStatus.Partnerships[0].Partner)
	assert.Equal(t, aliceStatus.Partnerships[0].SafetyNumber, bobStatus.Partnerships[0].SafetyNumber)
	assert.Zero(t, aliceStatus.Pending)
}

func TestWire_UnlinkStopsDelivery(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)
	alice, aliceID := newWire(t, url)
	bob, _ := newWire(t, url)

	code, err := alice.Sessions.Offer(ctx)
	require.NoError(t, err)
	partnership, err := bob.Sessions.Accept(ctx, code.Value)
	require.NoError(t, err)
	require.NoError(t, alice.Sync(ctx))

	// Bob queues a touch that is still undelivered when Alice unlinks.
	_, err = bob.Touch.SendGesture(ctx, domain.GestureHug, 0.5)
	require.NoError(t, err)

	_, err = alice.Sessions.Unlink(ctx, partnership.Peer(aliceID.ID))
	require.NoError(t, err)

	_, err = alice.Touch.SendGesture(ctx, domain.GestureTap, 1)
	assert.ErrorIs(t, err, domain.ErrPartnershipRevoked)

	// The unlink notice reaches Bob on his next fetch and revokes his side.
	got, err := bob.Touch.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = bob.Touch.SendGesture(ctx, domain.GestureTap, 1)
	assert.ErrorIs(t, err, domain.ErrPartnershipRevoked)
	bobStatus, err := bob.Status(ctx)
	require.NoError(t, err)
	require.Len(t, bobStatus.Partnerships, 1)
	assert.Equal(t, domain.PartnershipRevoked, bobStatus.Partnerships[0].Status)
	assert.Zero(t, bobStatus.Pending, "queued touches are abandoned")
}

func TestWire_UnlockRequiresPassphrase(t *testing.T) {
	cfg := config.Default()
	cfg.Home = t.TempDir()
	w, err := app.NewWire(cfg, logging.Discard())
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Unlock("")
	assert.Error(t, err)
	_, err = w.Status(context.Background())
	assert.ErrorIs(t, err, domain.ErrLocked)
}
