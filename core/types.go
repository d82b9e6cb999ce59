package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CORE DATA MODEL — Market / Order / Leg / TradeRecord
// ═══════════════════════════════════════════════════════════════════════════════

// Side is a direction within a binary window.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// OrderSide is the exchange-level buy/sell direction.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderType mirrors the exchange's maker/taker order types.
type OrderType string

const (
	OrderPostOnly OrderType = "POST_ONLY"
	OrderGTC      OrderType = "GTC"
)

// OrderStatus is the lifecycle of a single exchange order.
type OrderStatus string

const (
	OrderPending          OrderStatus = "PENDING"
	OrderLive             OrderStatus = "LIVE"
	OrderPartiallyFilled  OrderStatus = "PARTIALLY_FILLED"
	OrderFilled           OrderStatus = "FILLED"
	OrderCanceled         OrderStatus = "CANCELED"
	OrderRejectedCrossing OrderStatus = "REJECTED_CROSSING"
	OrderExpired          OrderStatus = "EXPIRED"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejectedCrossing, OrderExpired:
		return true
	}
	return false
}

// Role identifies which leg of an atomic pair an order belongs to.
type Role string

const (
	RoleEntry Role = "ENTRY"
	RoleHedge Role = "HEDGE"
)

// Outcome is the terminal classification of a TradeRecord.
type Outcome string

const (
	OutcomeOpen              Outcome = "OPEN"
	OutcomeHedgedComplete    Outcome = "HEDGED_COMPLETE"
	OutcomeEmergencySold     Outcome = "EMERGENCY_SOLD"
	OutcomePreSettled        Outcome = "PRE_SETTLED"
	OutcomePreSettledKeeper  Outcome = "PRE_SETTLED_KEEPER"
	OutcomeResolvedWin       Outcome = "RESOLVED_WIN"
	OutcomeResolvedLoss      Outcome = "RESOLVED_LOSS"
	OutcomeOrphaned          Outcome = "ORPHANED"
	OutcomeCanceledUnfilled  Outcome = "CANCELED_UNFILLED"
	OutcomeHoldThroughResolv Outcome = "HOLD_THROUGH_RESOLUTION"
)

// Token identifies one outcome side of a Market on the exchange.
type Token struct {
	ID   string
	Side Side
}

// Market identifies one resolvable 15-minute window for a symbol.
type Market struct {
	Symbol      string
	WindowStart time.Time
	WindowEnd   time.Time
	UpToken     Token
	DownToken   Token
	TickSize    decimal.Decimal
}

func (m *Market) TokenFor(side Side) Token {
	if side == SideUp {
		return m.UpToken
	}
	return m.DownToken
}

func (m *Market) TimeRemaining(now time.Time) time.Duration {
	return m.WindowEnd.Sub(now)
}

// WindowKey uniquely identifies a (symbol, window) pair.
type WindowKey struct {
	Symbol      string
	WindowStart time.Time
}

func (m *Market) Key() WindowKey {
	return WindowKey{Symbol: m.Symbol, WindowStart: m.WindowStart}
}

// Order is one exchange order, a leaf of a Leg.
type Order struct {
	ExchangeID       string
	Token            Token
	Side             OrderSide
	Price            decimal.Decimal
	Size             decimal.Decimal
	Type             OrderType
	Status           OrderStatus
	FilledSize       decimal.Decimal
	AverageFillPrice decimal.Decimal
}

// Leg is one side of an atomic pair (ENTRY or HEDGE).
type Leg struct {
	Role          Role
	Order         Order
	IntendedSize  decimal.Decimal
	IntendedPrice decimal.Decimal

	// Outcome mirrors the persisted TradeRecord.Outcome for this leg once
	// finalizeOutcome has run; empty means still open. settleResolution uses
	// it to avoid re-settling a leg the liquidator already finalized.
	Outcome Outcome
}

// TradeRecord is the durable row for one Leg, per §3 of the spec this repo implements.
type TradeRecord struct {
	ID            int64
	PairID        string
	Role          Role
	Symbol        string
	WindowStart   time.Time
	WindowEnd     time.Time
	Side          Side
	EntryPrice    decimal.Decimal
	FilledSize    decimal.Decimal
	BetCollateral decimal.Decimal
	OrderID       string
	OrderStatus   OrderStatus
	Outcome       Outcome
	ExitPrice     decimal.Decimal
	PnL           decimal.Decimal
	CreatedAt     time.Time
	SettledAt     time.Time
}

// Plan is the output of PricingPolicy: a concrete, costed atomic pair proposal.
type Plan struct {
	Symbol      string
	EntrySide   Side
	EntryPrice  decimal.Decimal
	EntrySize   decimal.Decimal
	HedgePrice  decimal.Decimal
	HedgeSize   decimal.Decimal
	Confidence  decimal.Decimal
	CombinedCap decimal.Decimal
}

// PlacementOutcome is the result of AtomicPlacer.Place.
type PlacementOutcome string

const (
	PlacementActive        PlacementOutcome = "ACTIVE"
	PlacementCrossingRetry PlacementOutcome = "CROSSING_RETRY"
)

// FillOutcome is the result of FillMonitor.Wait.
type FillOutcome string

const (
	FillBothFilled    FillOutcome = "BOTH_FILLED"
	FillOneFilled     FillOutcome = "ONE_FILLED"
	FillPartialOne    FillOutcome = "PARTIAL_ONE"
	FillNeitherFilled FillOutcome = "NEITHER_FILLED"
)

// LiquidationResult is the terminal classification of an EmergencyLiquidator run.
type LiquidationResult string

const (
	LiquidationSoldAll              LiquidationResult = "SOLD_ALL"
	LiquidationHoldThroughResolution LiquidationResult = "HOLD_THROUGH_RESOLUTION"
	LiquidationOrphaned             LiquidationResult = "ORPHANED"
)
