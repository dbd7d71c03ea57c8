package mailbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"heartline/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS mailbox (
    seq          BIGSERIAL PRIMARY KEY,
    recipient    TEXT NOT NULL,
    envelope_id  TEXT NOT NULL,
    envelope     JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (recipient, envelope_id)
);
CREATE INDEX IF NOT EXISTS idx_mailbox_recipient ON mailbox(recipient, seq);
`

// Postgres keeps mailboxes in a single table ordered by insertion sequence.
// Redelivered envelopes with a known id are ignored.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// NewPostgres returns a mailbox on db after creating its table.
func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("apply mailbox schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Deliver implements domain.Channel.
func (p *Postgres) Deliver(ctx context.Context, env domain.SealedEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `INSERT INTO mailbox (recipient, envelope_id, envelope)
        VALUES ($1, $2, $3) ON CONFLICT (recipient, envelope_id) DO NOTHING`,
		env.Receiver.String(), env.ID.String(), raw)
	if err != nil {
		return fmt.Errorf("mailbox deliver: %w", err)
	}
	return nil
}

// Fetch implements domain.Channel.
func (p *Postgres) Fetch(ctx context.Context, recipient domain.Identity, limit int) ([]domain.SealedEnvelope, error) {
	if limit <= 0 {
		limit = 1 << 16
	}
	rows, err := p.db.Query(ctx, `SELECT envelope FROM mailbox WHERE recipient = $1 ORDER BY seq LIMIT $2`,
		recipient.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("mailbox fetch: %w", err)
	}
	defer rows.Close()

	var out []domain.SealedEnvelope
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("mailbox fetch: %w", err)
		}
		var env domain.SealedEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("mailbox fetch: decode: %w", err)
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// Ack implements domain.Channel.
func (p *Postgres) Ack(ctx context.Context, recipient domain.Identity, count int) error {
	if count <= 0 {
		return nil
	}
	_, err := p.db.Exec(ctx, `DELETE FROM mailbox WHERE seq IN (
        SELECT seq FROM mailbox WHERE recipient = $1 ORDER BY seq LIMIT $2)`,
		recipient.String(), count)
	if err != nil {
		return fmt.Errorf("mailbox ack: %w", err)
	}
	return nil
}

var _ domain.Channel = (*Postgres)(nil)
