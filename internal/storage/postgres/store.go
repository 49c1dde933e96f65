package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolCustody/internal/model"
	"poolCustody/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS custody_events (
	id         BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	actor      TEXT NOT NULL,
	pool       TEXT NOT NULL DEFAULT '',
	attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS custody_events_pool_idx ON custody_events (pool, ts);
CREATE TABLE IF NOT EXISTS keeper_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// accountsLock is the transaction advisory lock that serializes Apply across
// every process sharing the database.
const accountsLock int64 = 0x637573746f6479

// Store persists custody accounts, the event journal and keeper progress in
// Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ state.Backend = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store needs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get returns the raw account stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM accounts WHERE key=$1`, key)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load account %s: %w", key, err)
	}
	return data, true, nil
}

// Keys lists stored keys starting with prefix in ascending order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM accounts WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan account keys: %w", err)
	}
	return keys, nil
}

// Apply writes a set of changes in a single transaction. Commits are
// serialized with an advisory lock and rejected with state.ErrConflict when
// a row the view read has changed since.
func (s *Store) Apply(ctx context.Context, reads []state.Read, changes []state.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, accountsLock); err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	if err := validateReads(ctx, tx, reads); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ch := range changes {
		if ch.Delete {
			batch.Queue(`DELETE FROM accounts WHERE key=$1`, ch.Key)
			continue
		}
		batch.Queue(`
			INSERT INTO accounts (key, data, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE
			SET data = EXCLUDED.data, updated_at = now()
		`, ch.Key, ch.Value)
	}

	br := tx.SendBatch(ctx, batch)
	for range changes {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("apply account change: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func validateReads(ctx context.Context, tx pgx.Tx, reads []state.Read) error {
	if len(reads) == 0 {
		return nil
	}
	keys := make([]string, 0, len(reads))
	for _, read := range reads {
		keys = append(keys, read.Key)
	}
	rows, err := tx.Query(ctx, `SELECT key, data FROM accounts WHERE key = ANY($1)`, keys)
	if err != nil {
		return fmt.Errorf("load read set: %w", err)
	}
	defer rows.Close()

	stored := make(map[string][]byte, len(keys))
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("scan read set: %w", err)
		}
		stored[key] = data
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan read set: %w", err)
	}
	return state.Validate(reads, stored)
}

// PutEventBatch appends events to the custody_events journal.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		attrs, err := json.Marshal(ev.Attributes)
		if err != nil {
			return fmt.Errorf("marshal event attributes: %w", err)
		}
		if ev.Attributes == nil {
			attrs = []byte("{}")
		}
		batch.Queue(`
			INSERT INTO custody_events (event_type, ts, actor, pool, attributes, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, ev.Type, ev.Timestamp, ev.Actor, ev.Pool, attrs)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the journal of pool in timestamp order. An empty pool
// returns every event.
func (s *Store) Events(ctx context.Context, pool string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, ts, actor, pool, attributes
		FROM custody_events
		WHERE $1 = '' OR pool = $1
		ORDER BY ts, id
	`, pool)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			ev    model.Event
			attrs []byte
		)
		if err := rows.Scan(&ev.Type, &ev.Timestamp, &ev.Actor, &ev.Pool, &attrs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &ev.Attributes); err != nil {
				return nil, fmt.Errorf("decode event attributes: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM keeper_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts int64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO keeper_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}
