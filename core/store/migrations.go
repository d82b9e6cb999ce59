package store

import (
	"database/sql"

	"github.com/web3guy0/atomichedge/core"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS — versioned schema registry
// ═══════════════════════════════════════════════════════════════════════════════
//
// storage/database.go runs a single idempotent CREATE TABLE IF NOT EXISTS at
// startup with no version tracking, which can't tell a stale binary from a
// fresh one (ErrSchemaMismatch has nowhere to come from). This registry keeps
// the same idempotent-SQL style but records which steps have run in a
// schema_migrations table, so a binary older than the on-disk schema fails
// fast instead of silently operating on an unrecognized layout.
//
// Each step carries both a sqlite and a postgres body: the two diverge only
// on the autoincrement id column (AUTOINCREMENT vs BIGSERIAL) and the width
// of the unix-timestamp columns (INTEGER vs BIGINT), so keeping both inline
// here beats a runtime SQL-rewriter for two fixed schemas.
//
// ═══════════════════════════════════════════════════════════════════════════════

type migration struct {
	version  int
	sqlite   string
	postgres string
}

var migrations = []migration{
	{
		version: 1,
		sqlite: `
CREATE TABLE IF NOT EXISTS trades (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	pair_id        TEXT NOT NULL,
	role           TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	window_start   INTEGER NOT NULL,
	window_end     INTEGER NOT NULL,
	side           TEXT NOT NULL,
	entry_price    TEXT NOT NULL,
	filled_size    TEXT NOT NULL,
	bet_collateral TEXT NOT NULL,
	order_id       TEXT NOT NULL,
	order_status   TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	exit_price     TEXT NOT NULL,
	pnl            TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	settled_at     INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_pair_role ON trades(pair_id, role);
CREATE INDEX IF NOT EXISTS idx_trades_outcome ON trades(outcome);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_window ON trades(symbol, window_start);
`,
		postgres: `
CREATE TABLE IF NOT EXISTS trades (
	id             BIGSERIAL PRIMARY KEY,
	pair_id        TEXT NOT NULL,
	role           TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	window_start   BIGINT NOT NULL,
	window_end     BIGINT NOT NULL,
	side           TEXT NOT NULL,
	entry_price    TEXT NOT NULL,
	filled_size    TEXT NOT NULL,
	bet_collateral TEXT NOT NULL,
	order_id       TEXT NOT NULL,
	order_status   TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	exit_price     TEXT NOT NULL,
	pnl            TEXT NOT NULL,
	created_at     BIGINT NOT NULL,
	settled_at     BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_pair_role ON trades(pair_id, role);
CREATE INDEX IF NOT EXISTS idx_trades_outcome ON trades(outcome);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_window ON trades(symbol, window_start);
`,
	},
	{
		version: 2,
		sqlite: `
CREATE TABLE IF NOT EXISTS postonly_failures (
	symbol       TEXT PRIMARY KEY,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_failure INTEGER
);
`,
		postgres: `
CREATE TABLE IF NOT EXISTS postonly_failures (
	symbol       TEXT PRIMARY KEY,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_failure BIGINT
);
`,
	},
	{
		version: 3,
		sqlite: `
CREATE TABLE IF NOT EXISTS risk_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
		postgres: `
CREATE TABLE IF NOT EXISTS risk_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}

func (m migration) body(driver string) string {
	if driver == "pgx" {
		return m.postgres
	}
	return m.sqlite
}

func (s *Store) migrate() error {
	schemaMigrationsDDL := `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at BIGINT NOT NULL)`
	if s.driver != "pgx" {
		schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at INTEGER NOT NULL)`
	}
	if _, err := s.db.Exec(schemaMigrationsDDL); err != nil {
		return err
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	latest := migrations[len(migrations)-1].version
	for v := range applied {
		if v > latest {
			return core.ErrSchemaMismatch
		}
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.body(s.driver)); err != nil {
		tx.Rollback()
		return err
	}
	recordSQL := `INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s','now'))`
	if s.driver == "pgx" {
		recordSQL = `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, extract(epoch from now())::bigint)`
	}
	if _, err := tx.Exec(s.rebind(recordSQL), m.version); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SavePostOnlyFailure upserts the attempt counter for symbol.
func (s *Store) SavePostOnlyFailure(symbol string, attempts int, lastFailure int64) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO postonly_failures (symbol, attempts, last_failure) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET attempts = excluded.attempts, last_failure = excluded.last_failure
	`), symbol, attempts, lastFailure)
	return err
}

// LoadPostOnlyFailures returns the persisted attempt counters for all symbols.
func (s *Store) LoadPostOnlyFailures() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT symbol, attempts FROM postonly_failures`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var sym string
		var n int
		if err := rows.Scan(&sym, &n); err != nil {
			return nil, err
		}
		out[sym] = n
	}
	return out, rows.Err()
}

// SaveRiskState persists an opaque key/value pair (exposure totals, etc).
func (s *Store) SaveRiskState(key, value string) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO risk_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`), key, value)
	return err
}

// LoadRiskState reads back a value saved with SaveRiskState.
func (s *Store) LoadRiskState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(s.rebind(`SELECT value FROM risk_state WHERE key = ?`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
