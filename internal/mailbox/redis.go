package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"heartline/internal/domain"
)

const keyPrefix = "heartline:v1:mbox:"

// Redis keeps each recipient's queue in a Redis list.
type Redis struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedis returns a mailbox on rdb. Queues untouched for retention are
// dropped by Redis; zero keeps them forever.
func NewRedis(rdb *redis.Client, retention time.Duration) *Redis {
	return &Redis{rdb: rdb, retention: retention}
}

func key(recipient domain.Identity) string { return keyPrefix + recipient.String() }

// Deliver appends env with RPUSH.
func (r *Redis) Deliver(ctx context.Context, env domain.SealedEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key(env.Receiver), raw)
		if r.retention > 0 {
			pipe.Expire(ctx, key(env.Receiver), r.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mailbox deliver: %w", err)
	}
	return nil
}

// Fetch reads the head of the list with LRANGE.
func (r *Redis) Fetch(ctx context.Context, recipient domain.Identity, limit int) ([]domain.SealedEnvelope, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	items, err := r.rdb.LRange(ctx, key(recipient), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("mailbox fetch: %w", err)
	}
	out := make([]domain.SealedEnvelope, 0, len(items))
	for _, item := range items {
		var env domain.SealedEnvelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			return nil, fmt.Errorf("mailbox fetch: decode: %w", err)
		}
		out = append(out, env)
	}
	return out, nil
}

// Ack trims the acknowledged prefix with LTRIM.
func (r *Redis) Ack(ctx context.Context, recipient domain.Identity, count int) error {
	if count <= 0 {
		return nil
	}
	if err := r.rdb.LTrim(ctx, key(recipient), int64(count), -1).Err(); err != nil {
		return fmt.Errorf("mailbox ack: %w", err)
	}
	return nil
}

var _ domain.Channel = (*Redis)(nil)
