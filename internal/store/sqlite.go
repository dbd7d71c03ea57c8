package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"heartline/internal/domain"
)

// Schema for the local outbox, touch history and issued pairing codes.
const schema = `
CREATE TABLE IF NOT EXISTS outbox (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    envelope_id      TEXT NOT NULL UNIQUE,
    session_id       TEXT NOT NULL,
    envelope         BLOB NOT NULL,
    attempts         INTEGER NOT NULL DEFAULT 0,
    last_attempt_ns  INTEGER NOT NULL DEFAULT 0,
    next_attempt_ns  INTEGER NOT NULL DEFAULT 0,
    state            TEXT NOT NULL,
    last_error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_outbox_session ON outbox(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_outbox_state ON outbox(state, last_attempt_ns);

CREATE TABLE IF NOT EXISTS history (
    envelope_id  TEXT NOT NULL,
    direction    TEXT NOT NULL,
    session_id   TEXT NOT NULL,
    kind         TEXT NOT NULL,
    sent_at_ns   INTEGER NOT NULL,
    recorded_ns  INTEGER NOT NULL,
    PRIMARY KEY (envelope_id, direction)
);

CREATE INDEX IF NOT EXISTS idx_history_session ON history(session_id, sent_at_ns);

CREATE TABLE IF NOT EXISTS issued_codes (
    owner        TEXT NOT NULL,
    value        TEXT NOT NULL,
    created_ns   INTEGER NOT NULL,
    expires_ns   INTEGER NOT NULL,
    PRIMARY KEY (owner, value)
);
`

// ErrNotFound is returned when an update or delete names an unknown entry.
var ErrNotFound = errors.New("store: not found")

// SQLite is the durable outbox queue, touch history and issued code ledger.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps read-modify-write sequences from interleaving.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---------- Outbox ----------

// PutEntry appends entry to its session's queue.
func (s *SQLite) PutEntry(ctx context.Context, entry domain.OutboxEntry, env domain.SealedEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox (envelope_id, session_id, envelope, attempts, last_attempt_ns, next_attempt_ns, state, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EnvelopeID, entry.SessionID, raw, entry.Attempts,
		nanos(entry.LastAttemptAt), nanos(entry.NextAttemptAt), entry.State, entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// NextEntry returns the head of the session's queue.
func (s *SQLite) NextEntry(ctx context.Context, session domain.SessionID) (
	domain.OutboxEntry,
	domain.SealedEnvelope,
	bool,
	error,
) {
	var (
		e          domain.OutboxEntry
		env        domain.SealedEnvelope
		raw        []byte
		last, next int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT envelope_id, session_id, envelope, attempts, last_attempt_ns, next_attempt_ns, state, last_error
		FROM outbox WHERE session_id = ? AND state != ?
		ORDER BY seq LIMIT 1`,
		session, domain.OutboxAbandoned,
	).Scan(&e.EnvelopeID, &e.SessionID, &raw, &e.Attempts, &last, &next, &e.State, &e.LastError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OutboxEntry{}, domain.SealedEnvelope{}, false, nil
		}
		return domain.OutboxEntry{}, domain.SealedEnvelope{}, false, fmt.Errorf("next outbox entry: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.OutboxEntry{}, domain.SealedEnvelope{}, false, fmt.Errorf("decode envelope %s: %w", e.EnvelopeID, err)
	}
	e.LastAttemptAt, e.NextAttemptAt = fromNanos(last), fromNanos(next)
	return e, env, true, nil
}

// UpdateEntry overwrites the delivery bookkeeping of an existing entry.
func (s *SQLite) UpdateEntry(ctx context.Context, entry domain.OutboxEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET attempts = ?, last_attempt_ns = ?, next_attempt_ns = ?, state = ?, last_error = ?
		WHERE envelope_id = ?`,
		entry.Attempts, nanos(entry.LastAttemptAt), nanos(entry.NextAttemptAt), entry.State, entry.LastError,
		entry.EnvelopeID,
	)
	if err != nil {
		return fmt.Errorf("update outbox entry: %w", err)
	}
	return expectOne(res, entry.EnvelopeID)
}

// DeleteEntry removes a delivered entry.
func (s *SQLite) DeleteEntry(ctx context.Context, id domain.EnvelopeID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE envelope_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete outbox entry: %w", err)
	}
	return expectOne(res, id)
}

// ListEntries returns every entry of session in queue order, abandoned ones included.
func (s *SQLite) ListEntries(ctx context.Context, session domain.SessionID) ([]domain.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT envelope_id, session_id, attempts, last_attempt_ns, next_attempt_ns, state, last_error
		FROM outbox WHERE session_id = ? ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEntry
	for rows.Next() {
		var (
			e          domain.OutboxEntry
			last, next int64
		)
		if err := rows.Scan(&e.EnvelopeID, &e.SessionID, &e.Attempts, &last, &next, &e.State, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.LastAttemptAt, e.NextAttemptAt = fromNanos(last), fromNanos(next)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DemoteStale marks in-flight entries last attempted before cutoff as failed.
func (s *SQLite) DemoteStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET state = ?, last_error = ?
		WHERE state = ? AND last_attempt_ns < ?`,
		domain.OutboxFailed, domain.ErrDeliveryTimeout.Error(), domain.OutboxInFlight, nanos(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("demote stale entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PendingSessions lists sessions that still have deliverable entries.
func (s *SQLite) PendingSessions(ctx context.Context) ([]domain.SessionID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session_id FROM outbox WHERE state != ? ORDER BY session_id`,
		domain.OutboxAbandoned,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionID
	for rows.Next() {
		var id domain.SessionID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---------- History ----------

// AppendHistory records rec. It reports false when the envelope id was
// already recorded in the same direction.
func (s *SQLite) AppendHistory(ctx context.Context, rec domain.HistoryRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO history (envelope_id, direction, session_id, kind, sent_at_ns, recorded_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.EnvelopeID, rec.Direction, rec.SessionID, rec.Kind, nanos(rec.SentAt), nanos(rec.RecordedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Seen reports whether id was already recorded in direction dir.
func (s *SQLite) Seen(ctx context.Context, id domain.EnvelopeID, dir domain.Direction) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM history WHERE envelope_id = ? AND direction = ?`, id, dir,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query history: %w", err)
	}
	return true, nil
}

// History returns up to limit records of session, newest first. A limit of
// zero or less returns everything.
func (s *SQLite) History(ctx context.Context, session domain.SessionID, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT envelope_id, direction, session_id, kind, sent_at_ns, recorded_ns
		FROM history WHERE session_id = ?
		ORDER BY sent_at_ns DESC, recorded_ns DESC LIMIT ?`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			r              domain.HistoryRecord
			sent, recorded int64
		)
		if err := rows.Scan(&r.EnvelopeID, &r.Direction, &r.SessionID, &r.Kind, &sent, &recorded); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.SentAt, r.RecordedAt = fromNanos(sent), fromNanos(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------- Issued codes ----------

// RecordIssuedCode remembers code as issued by its owner. Re-issuing a value
// replaces the earlier record.
func (s *SQLite) RecordIssuedCode(ctx context.Context, code domain.PairingCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO issued_codes (owner, value, created_ns, expires_ns)
		VALUES (?, ?, ?, ?)`,
		code.Owner, code.Value, nanos(code.CreatedAt), nanos(code.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("record issued code: %w", err)
	}
	return nil
}

// IssuedCodes returns owner's recorded codes, oldest first. Only the routing
// fields are kept, so OwnerPublicKey is zero.
func (s *SQLite) IssuedCodes(ctx context.Context, owner domain.Identity) ([]domain.PairingCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, value, created_ns, expires_ns
		FROM issued_codes WHERE owner = ? ORDER BY created_ns, value`, owner)
	if err != nil {
		return nil, fmt.Errorf("list issued codes: %w", err)
	}
	defer rows.Close()

	var out []domain.PairingCode
	for rows.Next() {
		var (
			c                domain.PairingCode
			created, expires int64
		)
		if err := rows.Scan(&c.Owner, &c.Value, &created, &expires); err != nil {
			return nil, fmt.Errorf("scan issued code: %w", err)
		}
		c.CreatedAt, c.ExpiresAt = fromNanos(created), fromNanos(expires)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ForgetIssuedCode drops the record; forgetting an unknown code is a no-op.
func (s *SQLite) ForgetIssuedCode(ctx context.Context, owner domain.Identity, value string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM issued_codes WHERE owner = ? AND value = ?`, owner, value); err != nil {
		return fmt.Errorf("forget issued code: %w", err)
	}
	return nil
}

// ---------- helpers ----------

func expectOne(res sql.Result, id domain.EnvelopeID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// nanos stores the zero time as 0.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Compile-time assertions that SQLite implements the durable queue, history
// and issued code ledger.
var (
	_ domain.OutboxStore     = (*SQLite)(nil)
	_ domain.HistoryStore    = (*SQLite)(nil)
	_ domain.IssuedCodeStore = (*SQLite)(nil)
)
