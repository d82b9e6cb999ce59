package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXCHANGE CLIENT CONTRACT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Narrow capability surface per §4.2/§6.1. exec.ExchangeAdapter implements
// this; everything in core depends only on the interface so tests can
// substitute a deterministic mock (see fakeExchange in this package's tests).
//
// ═══════════════════════════════════════════════════════════════════════════════

// OrderRequest is one leg to place.
type OrderRequest struct {
	Token Token
	Side  OrderSide
	Price decimal.Decimal
	Size  decimal.Decimal
	Type  OrderType
}

// PlacedOrder is the exchange's immediate response to one OrderRequest.
type PlacedOrder struct {
	ExchangeID string
	Status     OrderStatus
}

// OrderState is the result of a getOrder query.
type OrderState struct {
	Status           OrderStatus
	FilledSize       decimal.Decimal
	AverageFillPrice decimal.Decimal
	CreatedAt        time.Time
}

// FillEvent is one message off the authenticated fills stream.
type FillEvent struct {
	ExchangeID string
	FilledSize decimal.Decimal
	Price      decimal.Decimal
	Ts         time.Time
}

// ExchangeClient is the core's only door to the outside trading venue.
type ExchangeClient interface {
	PlaceBatch(ctx context.Context, orders []OrderRequest) ([]PlacedOrder, error)
	GetOrder(ctx context.Context, exchangeID string) (OrderState, error)
	Cancel(ctx context.Context, exchangeID string) (bool, error)
	BestBid(ctx context.Context, token Token) (decimal.Decimal, error)
	BestAsk(ctx context.Context, token Token) (decimal.Decimal, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
	SubscribeFills(ctx context.Context) (<-chan FillEvent, error)
}

// ResolutionSource reports a window's outcome once observed (Open Question 2:
// on-chain redemption/payoff collection is delegated outside the core).
type ResolutionSource interface {
	Resolution(ctx context.Context, m *Market) (Side, bool, error)
}

// Signal is the result of the opaque read-only SignalSource contract of §4.3/§6.2.
type Signal struct {
	Confidence decimal.Decimal
	Bias       Side2 // UP, DOWN, or NEUTRAL
	PYes       decimal.Decimal
}

// Side2 extends Side with a NEUTRAL case for signal bias — kept distinct from
// Side (UP/DOWN only) because Market/Order/Leg never have a neutral option.
type Side2 string

const (
	BiasUp      Side2 = "UP"
	BiasDown    Side2 = "DOWN"
	BiasNeutral Side2 = "NEUTRAL"
)

func (b Side2) ToSide() (Side, bool) {
	switch b {
	case BiasUp:
		return SideUp, true
	case BiasDown:
		return SideDown, true
	default:
		return "", false
	}
}

type SignalSource interface {
	Signal(ctx context.Context, symbol string, now time.Time) (Signal, error)
}
