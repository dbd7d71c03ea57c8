package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/domain"
	"heartline/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	pass := "pass"

	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	has, err := ids.HasIdentity()
	require.NoError(t, err)
	assert.False(t, has)

	id := domain.LocalIdentity{
		ID:         "u1",
		XPub:       domain.X25519Public{1},
		XPriv:      domain.X25519Private{2},
		CreatedUTC: 1700000000,
	}
	require.NoError(t, ids.SaveIdentity(pass, id))

	has, err = ids.HasIdentity()
	require.NoError(t, err)
	assert.True(t, has)

	got, err := ids.LoadIdentity(pass)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	info, err := os.Stat(filepath.Join(home, "identity.json.enc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())

	id := domain.LocalIdentity{ID: "u1", XPub: domain.X25519Public{1}, XPriv: domain.X25519Private{2}}
	require.NoError(t, ids.SaveIdentity("correct", id))

	_, err := ids.LoadIdentity("wrong")
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestIdentity_Tampered_Fails(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home)
	require.NoError(t, ids.SaveIdentity("pw", domain.LocalIdentity{ID: "u1"}))

	path := filepath.Join(home, "identity.json.enc")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a character inside the base64 ciphertext near the end of the file.
	i := len(b) - 4
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	require.NoError(t, os.WriteFile(path, b, 0o600))

	_, err = ids.LoadIdentity("pw")
	assert.Error(t, err)
}

func TestPartnership_SaveLoadList(t *testing.T) {
	ps := store.NewPartnershipFileStore(t.TempDir())

	older := domain.Partnership{
		IdentityA: "u1", IdentityB: "u2",
		SessionID: domain.NewSessionID("u1", "u2"),
		LinkedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    domain.PartnershipRevoked,
		RevokedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := domain.Partnership{
		IdentityA: "u1", IdentityB: "u3",
		SessionID:     domain.NewSessionID("u1", "u3"),
		LinkedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.PartnershipActive,
		PeerPublicKey: domain.X25519Public{9},
	}
	require.NoError(t, ps.SavePartnership(older))
	require.NoError(t, ps.SavePartnership(newer))

	got, ok, err := ps.LoadPartnership(newer.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer, got)

	_, ok, err = ps.LoadPartnership("nobody|u1")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := ps.ListPartnerships()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.SessionID, all[0].SessionID)
	assert.Equal(t, older.SessionID, all[1].SessionID)

	// Status changes replace the record in place.
	newer.Status = domain.PartnershipRevoked
	require.NoError(t, ps.SavePartnership(newer))
	got, _, err = ps.LoadPartnership(newer.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipRevoked, got.Status)
}

func openSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "db", "heartline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func envelope(id domain.EnvelopeID) domain.SealedEnvelope {
	return domain.SealedEnvelope{
		ID:         id,
		Sender:     "u1",
		Receiver:   "u2",
		Kind:       domain.KindGesture,
		SentAt:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Nonce:      []byte{1, 2, 3},
		Ciphertext: []byte{4, 5},
		AuthTag:    []byte{6},
	}
}

func TestSQLite_OutboxFIFO(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	session := domain.NewSessionID("u1", "u2")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []domain.EnvelopeID{"e1", "e2", "e3"} {
		require.NoError(t, db.PutEntry(ctx, domain.OutboxEntry{
			EnvelopeID: id, SessionID: session, NextAttemptAt: now, State: domain.OutboxQueued,
		}, envelope(id)))
	}
	assert.Error(t, db.PutEntry(ctx, domain.OutboxEntry{EnvelopeID: "e1", SessionID: session}, envelope("e1")))

	head, env, ok, err := db.NextEntry(ctx, session)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.EnvelopeID("e1"), head.EnvelopeID)
	assert.Equal(t, envelope("e1"), env)
	assert.True(t, head.NextAttemptAt.Equal(now))
	assert.True(t, head.LastAttemptAt.IsZero())

	head.State = domain.OutboxFailed
	head.Attempts = 2
	head.LastError = "boom"
	require.NoError(t, db.UpdateEntry(ctx, head))

	head2, _, _, err := db.NextEntry(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, head, head2, "failed head still blocks the queue")

	require.NoError(t, db.DeleteEntry(ctx, "e1"))
	head, _, _, err = db.NextEntry(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeID("e2"), head.EnvelopeID)

	assert.ErrorIs(t, db.DeleteEntry(ctx, "e1"), store.ErrNotFound)
	assert.ErrorIs(t, db.UpdateEntry(ctx, domain.OutboxEntry{EnvelopeID: "nope"}), store.ErrNotFound)

	_, _, ok, err = db.NextEntry(ctx, domain.NewSessionID("u1", "u9"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_AbandonedAndPending(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	s12 := domain.NewSessionID("u1", "u2")
	s13 := domain.NewSessionID("u1", "u3")

	require.NoError(t, db.PutEntry(ctx, domain.OutboxEntry{EnvelopeID: "a", SessionID: s12, State: domain.OutboxQueued}, envelope("a")))
	require.NoError(t, db.PutEntry(ctx, domain.OutboxEntry{EnvelopeID: "b", SessionID: s13, State: domain.OutboxQueued}, envelope("b")))

	sessions, err := db.PendingSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.SessionID{s12, s13}, sessions)

	require.NoError(t, db.UpdateEntry(ctx, domain.OutboxEntry{EnvelopeID: "a", SessionID: s12, State: domain.OutboxAbandoned}))

	sessions, err = db.PendingSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.SessionID{s13}, sessions)

	_, _, ok, err := db.NextEntry(ctx, s12)
	require.NoError(t, err)
	assert.False(t, ok, "abandoned entries are never delivered")

	entries, err := db.ListEntries(ctx, s12)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxAbandoned, entries[0].State)
}

func TestSQLite_DemoteStale(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	session := domain.NewSessionID("u1", "u2")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	put := func(id domain.EnvelopeID, state domain.OutboxState, last time.Time) {
		require.NoError(t, db.PutEntry(ctx, domain.OutboxEntry{
			EnvelopeID: id, SessionID: session, State: state, LastAttemptAt: last, Attempts: 1,
		}, envelope(id)))
	}
	put("stale", domain.OutboxInFlight, now.Add(-2*time.Minute))
	put("fresh", domain.OutboxInFlight, now)
	put("queued", domain.OutboxQueued, time.Time{})

	n, err := db.DemoteStale(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := db.ListEntries(ctx, session)
	require.NoError(t, err)
	states := map[domain.EnvelopeID]domain.OutboxState{}
	for _, e := range entries {
		states[e.EnvelopeID] = e.State
	}
	assert.Equal(t, map[domain.EnvelopeID]domain.OutboxState{
		"stale":  domain.OutboxFailed,
		"fresh":  domain.OutboxInFlight,
		"queued": domain.OutboxQueued,
	}, states)
}

func TestSQLite_HistoryDedupe(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	session := domain.NewSessionID("u1", "u2")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := domain.HistoryRecord{
		EnvelopeID: "e1", SessionID: session, Direction: domain.DirectionIncoming,
		Kind: domain.KindGesture, SentAt: base, RecordedAt: base.Add(time.Second),
	}
	fresh, err := db.AppendHistory(ctx, rec)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = db.AppendHistory(ctx, rec)
	require.NoError(t, err)
	assert.False(t, fresh, "same id and direction is a duplicate")

	out := rec
	out.Direction = domain.DirectionOutgoing
	fresh, err = db.AppendHistory(ctx, out)
	require.NoError(t, err)
	assert.True(t, fresh, "direction is part of the key")

	seen, err := db.Seen(ctx, "e1", domain.DirectionIncoming)
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = db.Seen(ctx, "e2", domain.DirectionIncoming)
	require.NoError(t, err)
	assert.False(t, seen)

	later := domain.HistoryRecord{
		EnvelopeID: "e2", SessionID: session, Direction: domain.DirectionIncoming,
		Kind: domain.KindPath, SentAt: base.Add(time.Minute), RecordedAt: base.Add(time.Minute),
	}
	_, err = db.AppendHistory(ctx, later)
	require.NoError(t, err)

	hist, err := db.History(ctx, session, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, domain.EnvelopeID("e2"), hist[0].EnvelopeID)
	assert.True(t, hist[0].SentAt.Equal(later.SentAt))

	all, err := db.History(ctx, session, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_IssuedCodes(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, v := range []string{"111111", "222222"} {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.RecordIssuedCode(ctx, domain.PairingCode{
			Value: v, Owner: "u1", CreatedAt: created, ExpiresAt: created.Add(time.Hour),
		}))
	}
	require.NoError(t, db.RecordIssuedCode(ctx, domain.PairingCode{
		Value: "333333", Owner: "u9", CreatedAt: base, ExpiresAt: base.Add(time.Hour),
	}))

	codes, err := db.IssuedCodes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "111111", codes[0].Value)
	assert.Equal(t, "222222", codes[1].Value)
	assert.True(t, codes[1].ExpiresAt.Equal(base.Add(time.Minute+time.Hour)))

	require.NoError(t, db.ForgetIssuedCode(ctx, "u1", "111111"))
	require.NoError(t, db.ForgetIssuedCode(ctx, "u1", "111111"), "forgetting twice is a no-op")

	codes, err = db.IssuedCodes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "222222", codes[0].Value)
}
