package directory_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/clock"
	"heartline/internal/directory"
	"heartline/internal/domain"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type backend struct {
	dir     domain.Directory
	advance func(time.Duration)
}

func backends(t *testing.T) map[string]backend {
	t.Helper()

	clk := clock.Fake(epoch)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]backend{
		"memory": {dir: directory.NewMemory(clk), advance: clk.Advance},
		"redis":  {dir: directory.NewRedis(rdb), advance: mr.FastForward},
	}
}

func code(value string, owner domain.Identity) domain.PairingCode {
	return domain.PairingCode{
		Value:          value,
		Owner:          owner,
		OwnerPublicKey: domain.X25519Public{7},
		CreatedAt:      epoch,
		ExpiresAt:      epoch.Add(time.Hour),
	}
}

func TestDirectory_PublishIsSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := b.dir.PublishCode(ctx, code("482913", "u1"), time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = b.dir.PublishCode(ctx, code("482913", "u9"), time.Hour)
			require.NoError(t, err)
			assert.False(t, ok, "occupied value is not overwritten")

			got, ok, err := b.dir.LookupCode(ctx, "482913")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, domain.Identity("u1"), got.Owner)
			assert.Equal(t, domain.X25519Public{7}, got.OwnerPublicKey)
			assert.True(t, got.ExpiresAt.Equal(epoch.Add(time.Hour)))
		})
	}
}

func TestDirectory_ConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.dir.PublishCode(ctx, code("111111", "u1"), time.Hour)
			require.NoError(t, err)

			got, ok, err := b.dir.ConsumeCode(ctx, "111111")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, domain.Identity("u1"), got.Owner)

			_, ok, err = b.dir.ConsumeCode(ctx, "111111")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = b.dir.LookupCode(ctx, "111111")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDirectory_RecordsExpire(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.dir.PublishCode(ctx, code("222222", "u1"), time.Minute)
			require.NoError(t, err)
			_, err = b.dir.PublishCode(ctx, code("444444", "u1"), time.Hour)
			require.NoError(t, err)
			consumed, _, err := b.dir.ConsumeCode(ctx, "444444")
			require.NoError(t, err)
			require.NoError(t, b.dir.PostAcceptance(ctx, domain.Acceptance{Code: "444444", Claim: consumed.Claim, Peer: "u2"}, time.Minute))

			b.advance(time.Minute + time.Second)

			_, ok, err := b.dir.LookupCode(ctx, "222222")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = b.dir.LookupAcceptance(ctx, "u1", "444444")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = b.dir.PublishCode(ctx, code("222222", "u3"), time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "value is free again after expiry")
		})
	}
}

func TestDirectory_DeleteCode(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.dir.PublishCode(ctx, code("333333", "u1"), time.Hour)
			require.NoError(t, err)
			require.NoError(t, b.dir.DeleteCode(ctx, "333333"))
			require.NoError(t, b.dir.DeleteCode(ctx, "333333"), "deleting a missing code is a no-op")

			_, ok, err := b.dir.LookupCode(ctx, "333333")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDirectory_SwapOwnerCode(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			prev, err := b.dir.SwapOwnerCode(ctx, "u1", "111111", time.Hour)
			require.NoError(t, err)
			assert.Empty(t, prev)

			prev, err = b.dir.SwapOwnerCode(ctx, "u1", "222222", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, "111111", prev)

			prev, err = b.dir.SwapOwnerCode(ctx, "u2", "333333", time.Hour)
			require.NoError(t, err)
			assert.Empty(t, prev, "owners are independent")
		})
	}
}

func TestDirectory_AcceptanceBoundToClaim(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			acc := domain.Acceptance{
				Code:          "482913",
				Peer:          "u2",
				PeerPublicKey: domain.X25519Public{3},
				SessionID:     domain.NewSessionID("u1", "u2"),
				AcceptedAt:    epoch,
			}
			_, err := b.dir.PublishCode(ctx, code("482913", "u1"), time.Hour)
			require.NoError(t, err)

			forged := acc
			forged.Peer, forged.Claim = "mallory", "guess"
			assert.ErrorIs(t, b.dir.PostAcceptance(ctx, forged, time.Hour), domain.ErrClaimRejected, "code not consumed")

			consumed, ok, err := b.dir.ConsumeCode(ctx, "482913")
			require.NoError(t, err)
			require.True(t, ok)
			require.NotEmpty(t, consumed.Claim)

			assert.ErrorIs(t, b.dir.PostAcceptance(ctx, forged, time.Hour), domain.ErrClaimRejected, "wrong claim")
			forged.Claim = ""
			assert.ErrorIs(t, b.dir.PostAcceptance(ctx, forged, time.Hour), domain.ErrClaimRejected, "no claim")

			acc.Claim = consumed.Claim
			require.NoError(t, b.dir.PostAcceptance(ctx, acc, time.Hour), "a wrong claim leaves the real one usable")
			assert.ErrorIs(t, b.dir.PostAcceptance(ctx, acc, time.Hour), domain.ErrClaimRejected, "claims are single use")

			got, ok, err := b.dir.LookupAcceptance(ctx, "u1", "482913")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, domain.Identity("u2"), got.Peer)
			assert.Empty(t, got.Claim)

			_, ok, err = b.dir.LookupAcceptance(ctx, "u9", "482913")
			require.NoError(t, err)
			assert.False(t, ok, "only the code owner sees the acceptance")
		})
	}
}

func TestDirectory_ClaimExpires(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.dir.PublishCode(ctx, code("555555", "u1"), time.Hour)
			require.NoError(t, err)
			consumed, _, err := b.dir.ConsumeCode(ctx, "555555")
			require.NoError(t, err)

			b.advance(directory.ClaimTTL + time.Second)

			err = b.dir.PostAcceptance(ctx, domain.Acceptance{Code: "555555", Claim: consumed.Claim, Peer: "u2"}, time.Hour)
			assert.ErrorIs(t, err, domain.ErrClaimRejected)
		})
	}
}

func TestDirectory_AcceptancesPerCode(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, c := range []struct {
				value string
				peer  domain.Identity
			}{{"111111", "u2"}, {"222222", "u3"}} {
				_, err := b.dir.PublishCode(ctx, code(c.value, "u1"), time.Hour)
				require.NoError(t, err)
				consumed, _, err := b.dir.ConsumeCode(ctx, c.value)
				require.NoError(t, err)
				require.NoError(t, b.dir.PostAcceptance(ctx, domain.Acceptance{Code: c.value, Claim: consumed.Claim, Peer: c.peer}, time.Hour))
			}

			first, ok, err := b.dir.LookupAcceptance(ctx, "u1", "111111")
			require.NoError(t, err)
			require.True(t, ok, "a later acceptance does not overwrite an earlier one")
			assert.Equal(t, domain.Identity("u2"), first.Peer)

			require.NoError(t, b.dir.DeleteAcceptance(ctx, "u1", "111111"))
			_, ok, err = b.dir.LookupAcceptance(ctx, "u1", "111111")
			require.NoError(t, err)
			assert.False(t, ok)

			second, ok, err := b.dir.LookupAcceptance(ctx, "u1", "222222")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, domain.Identity("u3"), second.Peer)
		})
	}
}
