package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORE — crash-safe TradeRecord persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on storage/database.go's plain database/sql query/exec idiom
// (placeholder binds, ON CONFLICT upsert), generalized with an explicit
// migration registry (see migrations.go) that storage/database.go's
// CREATE-TABLE-IF-NOT-EXISTS migrate() doesn't have. Driver selection follows
// the same sqlite-default / postgres-when-configured split internal/database
// used gorm for; here it's a plain DSN-prefix switch since no ORM is needed
// for a handful of fixed queries.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Store is the durable TradeRecord store (§4.1 of the spec this repo implements).
type Store struct {
	db     *sql.DB
	driver string // "sqlite3" or "pgx"
}

// rebind rewrites a query written with sqlite/mysql-style "?" placeholders
// into pgx's native "$1, $2, ..." form when the store is backed by Postgres;
// sqlite queries pass through unchanged.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open opens (and migrates) the store at dsn. A "postgres://" prefix selects
// the pgx stdlib driver; anything else is treated as a sqlite file path.
func Open(dsn string) (*Store, error) {
	driver := "sqlite3"
	connStr := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else {
		if !strings.Contains(connStr, "_journal_mode") {
			sep := "?"
			if strings.Contains(connStr, "?") {
				sep = "&"
			}
			connStr = connStr + sep + "_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1) // single writer, §5 concurrency model
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	log.Info().Str("driver", driver).Msg("💾 store opened")
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// InsertTradeRecord appends a new record. Fails with ErrConflict on a
// duplicate (pair_id, role) — invariant I2 at the storage layer.
func (s *Store) InsertTradeRecord(ctx context.Context, rec *core.TradeRecord) (int64, error) {
	var id int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM trades WHERE pair_id = ? AND role = ?`), rec.PairID, rec.Role)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return core.ErrConflict
		}

		const insertSQL = `
			INSERT INTO trades (
				pair_id, role, symbol, window_start, window_end, side,
				entry_price, filled_size, bet_collateral, order_id, order_status,
				outcome, exit_price, pnl, created_at, settled_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`
		args := []interface{}{
			rec.PairID, string(rec.Role), rec.Symbol, rec.WindowStart.Unix(), rec.WindowEnd.Unix(), string(rec.Side),
			rec.EntryPrice.String(), rec.FilledSize.String(), rec.BetCollateral.String(), rec.OrderID, string(rec.OrderStatus),
			string(rec.Outcome), rec.ExitPrice.String(), rec.PnL.String(), rec.CreatedAt.Unix(), nullableUnix(rec.SettledAt),
		}

		if s.driver == "pgx" {
			// pgx's Result.LastInsertId is always an error (Postgres has no
			// rowid concept); RETURNING is the native way to get the id back.
			return tx.QueryRowContext(ctx, s.rebind(insertSQL)+" RETURNING id", args...).Scan(&id)
		}
		res, err := tx.ExecContext(ctx, s.rebind(insertSQL), args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// TradeRecordPatch is a partial update applied to one TradeRecord.
type TradeRecordPatch struct {
	FilledSize    *decimal.Decimal
	OrderID       *string
	OrderStatus   *core.OrderStatus
	Outcome       *core.Outcome
	ExitPrice     *decimal.Decimal
	PnL           *decimal.Decimal
	SettledAt     *time.Time
	BetCollateral *decimal.Decimal
}

// UpdateTradeRecord applies patch to the record with the given id.
func (s *Store) UpdateTradeRecord(ctx context.Context, id int64, patch TradeRecordPatch) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var sets []string
		var args []interface{}
		if patch.FilledSize != nil {
			sets = append(sets, "filled_size = ?")
			args = append(args, patch.FilledSize.String())
		}
		if patch.OrderID != nil {
			sets = append(sets, "order_id = ?")
			args = append(args, *patch.OrderID)
		}
		if patch.OrderStatus != nil {
			sets = append(sets, "order_status = ?")
			args = append(args, string(*patch.OrderStatus))
		}
		if patch.Outcome != nil {
			sets = append(sets, "outcome = ?")
			args = append(args, string(*patch.Outcome))
		}
		if patch.ExitPrice != nil {
			sets = append(sets, "exit_price = ?")
			args = append(args, patch.ExitPrice.String())
		}
		if patch.PnL != nil {
			sets = append(sets, "pnl = ?")
			args = append(args, patch.PnL.String())
		}
		if patch.SettledAt != nil {
			sets = append(sets, "settled_at = ?")
			args = append(args, patch.SettledAt.Unix())
		}
		if patch.BetCollateral != nil {
			sets = append(sets, "bet_collateral = ?")
			args = append(args, patch.BetCollateral.String())
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, id)
		q := s.rebind(fmt.Sprintf("UPDATE trades SET %s WHERE id = ?", strings.Join(sets, ", ")))
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// UpdateFill records a leg's latest exchange-reported fill state. Satisfies
// core.Persister / core.OpenTradeStore.
func (s *Store) UpdateFill(ctx context.Context, id int64, status core.OrderStatus, filledSize decimal.Decimal) error {
	return s.UpdateTradeRecord(ctx, id, TradeRecordPatch{OrderStatus: &status, FilledSize: &filledSize})
}

// UpdateOutcome records a leg's terminal classification. Satisfies
// core.Persister / core.OpenTradeStore.
func (s *Store) UpdateOutcome(ctx context.Context, id int64, outcome core.Outcome, exitPrice, pnl decimal.Decimal, settledAt time.Time) error {
	return s.UpdateTradeRecord(ctx, id, TradeRecordPatch{Outcome: &outcome, ExitPrice: &exitPrice, PnL: &pnl, SettledAt: &settledAt})
}

// ListOpenTrades returns all records whose outcome is still OPEN.
func (s *Store) ListOpenTrades(ctx context.Context) ([]*core.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, pair_id, role, symbol, window_start, window_end, side,
		       entry_price, filled_size, bet_collateral, order_id, order_status,
		       outcome, exit_price, pnl, created_at, settled_at
		FROM trades WHERE outcome = ?`), string(core.OutcomeOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTradeRecords(rows)
}

// TotalOpenCollateral sums bet_collateral across open records (I5 exposure cap).
func (s *Store) TotalOpenCollateral(ctx context.Context) (decimal.Decimal, error) {
	open, err := s.ListOpenTrades(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range open {
		total = total.Add(r.BetCollateral)
	}
	return total, nil
}

func scanTradeRecords(rows *sql.Rows) ([]*core.TradeRecord, error) {
	var out []*core.TradeRecord
	for rows.Next() {
		r := &core.TradeRecord{}
		var entryPrice, filledSize, betCollateral, exitPrice, pnl string
		var windowStart, windowEnd, createdAt int64
		var settledAt sql.NullInt64
		var role, side, orderStatus, outcome string
		if err := rows.Scan(
			&r.ID, &r.PairID, &role, &r.Symbol, &windowStart, &windowEnd, &side,
			&entryPrice, &filledSize, &betCollateral, &r.OrderID, &orderStatus,
			&outcome, &exitPrice, &pnl, &createdAt, &settledAt,
		); err != nil {
			return nil, err
		}
		r.Role = core.Role(role)
		r.Side = core.Side(side)
		r.OrderStatus = core.OrderStatus(orderStatus)
		r.Outcome = core.Outcome(outcome)
		r.WindowStart = time.Unix(windowStart, 0).UTC()
		r.WindowEnd = time.Unix(windowEnd, 0).UTC()
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		if settledAt.Valid {
			r.SettledAt = time.Unix(settledAt.Int64, 0).UTC()
		}
		r.EntryPrice = mustDecimal(entryPrice)
		r.FilledSize = mustDecimal(filledSize)
		r.BetCollateral = mustDecimal(betCollateral)
		r.ExitPrice = mustDecimal(exitPrice)
		r.PnL = mustDecimal(pnl)
		out = append(out, r)
	}
	return out, rows.Err()
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullableUnix(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// transaction runs fn against a single *sql.Tx, committing on success and
// rolling back on any error — writes inside fn must reuse the supplied tx
// (no nested connection), eliminating writer-lock self-deadlock on sqlite's
// single-writer mode.
func (s *Store) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}
