package core

import "errors"

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY
// ═══════════════════════════════════════════════════════════════════════════════
//
// Five kinds: validation, exchange-domain, transient, consistency, fatal.
// Components return these sentinels (wrapped with fmt.Errorf + %w at each
// boundary); only TradeLifecycle maps them to state transitions.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Validation — never retried, lifecycle goes to IDLE_SKIPPED.
var (
	ErrBelowMin      = errors.New("core: order size below exchange minimum")
	ErrNotProfitable = errors.New("core: combined price exceeds cap")
	ErrNoMarket      = errors.New("core: no quotable market for symbol")
)

// Exchange-domain.
var (
	ErrCrossing          = errors.New("core: post-only order would cross the book")
	ErrInsufficientFunds = errors.New("core: insufficient collateral balance")
)

// Transient — retried at the ExchangeClient layer with bounded backoff.
var ErrTransient = errors.New("core: transient exchange error")

// Consistency — never auto-trusted.
var (
	ErrPhantomFill      = errors.New("core: order reported filled with zero filled size")
	ErrBalanceInflation = errors.New("core: balance increase without a confirming fill event")
)

// Fatal — process exits non-zero.
var (
	ErrStoreUnavailable = errors.New("core: store write failed")
	ErrSchemaMismatch   = errors.New("core: schema version ahead of binary")
	ErrAuthRejected     = errors.New("core: exchange authentication rejected")
)

// ErrNotFound is returned by Store lookups and ExchangeClient.GetOrder for
// unknown ids; treated as already-terminal by callers that cancel-then-check.
var ErrNotFound = errors.New("core: not found")

// ErrConflict is returned by Store.InsertTradeRecord on a duplicate (pairId, role).
var ErrConflict = errors.New("core: trade record already exists")

// ErrNotImplemented marks an intentionally unwired adapter (see signal.BayesianSignalSource).
var ErrNotImplemented = errors.New("core: not implemented")
