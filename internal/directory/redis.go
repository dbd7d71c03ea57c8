package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"heartline/internal/domain"
)

const keyPrefix = "heartline:v1:"

// Redis is a Directory backed by Redis. Record lifetimes use Redis TTLs.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func codeKey(value string) string { return keyPrefix + "code:" + value }
func ownerKey(owner domain.Identity) string { return keyPrefix + "owner:" + owner.String() }
func claimKey(value string) string { return keyPrefix + "claim:" + value }
func acceptKey(owner domain.Identity, value string) string {
	return keyPrefix + "accept:" + owner.String() + ":" + value
}

// PublishCode stores the code with SETNX so an occupied value is never overwritten.
func (r *Redis) PublishCode(ctx context.Context, code domain.PairingCode, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(code)
	if err != nil {
		return false, err
	}
	ok, err := r.rdb.SetNX(ctx, codeKey(code.Value), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("publish code: %w", err)
	}
	return ok, nil
}

// LookupCode implements domain.Directory.
func (r *Redis) LookupCode(ctx context.Context, value string) (domain.PairingCode, bool, error) {
	raw, err := r.rdb.Get(ctx, codeKey(value)).Bytes()
	return decode[domain.PairingCode](raw, err, "lookup code")
}

// ConsumeCode fetches and deletes the code in one GETDEL, then records the
// claim its consumer needs to post the acceptance.
func (r *Redis) ConsumeCode(ctx context.Context, value string) (domain.PairingCode, bool, error) {
	raw, err := r.rdb.GetDel(ctx, codeKey(value)).Bytes()
	code, ok, err := decode[domain.PairingCode](raw, err, "consume code")
	if !ok || err != nil {
		return code, ok, err
	}

	cl := newClaim(code.Owner)
	rawClaim, err := json.Marshal(cl)
	if err != nil {
		return domain.PairingCode{}, false, err
	}
	if err := r.rdb.Set(ctx, claimKey(value), rawClaim, ClaimTTL).Err(); err != nil {
		return domain.PairingCode{}, false, fmt.Errorf("record claim: %w", err)
	}
	code.Claim = cl.Token
	return code, true, nil
}

// DeleteCode implements domain.Directory.
func (r *Redis) DeleteCode(ctx context.Context, value string) error {
	if err := r.rdb.Del(ctx, codeKey(value)).Err(); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

// SwapOwnerCode replaces the owner's current code and refreshes its TTL in
// one MULTI/EXEC.
func (r *Redis) SwapOwnerCode(ctx context.Context, owner domain.Identity, value string, ttl time.Duration) (string, error) {
	var prev *redis.StringCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.GetSet(ctx, ownerKey(owner), value)
		pipe.Expire(ctx, ownerKey(owner), ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("swap owner code: %w", err)
	}
	v, err := prev.Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// PostAcceptance swaps the claim for the acceptance under WATCH, so two
// posts racing on one claim cannot both succeed.
func (r *Redis) PostAcceptance(ctx context.Context, acc domain.Acceptance, ttl time.Duration) error {
	if acc.Claim == "" {
		return domain.ErrClaimRejected
	}
	key := claimKey(acc.Code)
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		cl, ok, err := decode[claim](raw, err, "load claim")
		if err != nil {
			return err
		}
		if !ok || cl.Token != acc.Claim {
			return domain.ErrClaimRejected
		}

		stored := acc
		stored.Claim = ""
		rawAcc, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.Set(ctx, acceptKey(cl.Owner, acc.Code), rawAcc, ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrClaimRejected
	case errors.Is(err, domain.ErrClaimRejected):
		return err
	default:
		return fmt.Errorf("post acceptance: %w", err)
	}
}

// LookupAcceptance implements domain.Directory.
func (r *Redis) LookupAcceptance(ctx context.Context, owner domain.Identity, value string) (domain.Acceptance, bool, error) {
	raw, err := r.rdb.Get(ctx, acceptKey(owner, value)).Bytes()
	return decode[domain.Acceptance](raw, err, "lookup acceptance")
}

// DeleteAcceptance implements domain.Directory.
func (r *Redis) DeleteAcceptance(ctx context.Context, owner domain.Identity, value string) error {
	if err := r.rdb.Del(ctx, acceptKey(owner, value)).Err(); err != nil {
		return fmt.Errorf("delete acceptance: %w", err)
	}
	return nil
}

func decode[T any](raw []byte, err error, op string) (T, bool, error) {
	var v T
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("%s: decode: %w", op, err)
	}
	return v, true, nil
}

var _ domain.Directory = (*Redis)(nil)
