package core

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICING POLICY
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on risk/gate.go's CanEnter size-adjustment cascade (max-position-pct
// clamp, phase-based haircut, minimum-size rejection) generalized from a
// single-sided entry check into the two-sided combined-price computation
// below, and on risk/sizing.go's Sizer.Calculate/applyConstraints confidence
// scaling step.
//
// ═══════════════════════════════════════════════════════════════════════════════

type MaxSizeMode string

const (
	MaxSizeCap      MaxSizeMode = "CAP"
	MaxSizeMaximize MaxSizeMode = "MAXIMIZE"
)

// PricingInput bundles everything PricingPolicy needs to cost a plan.
type PricingInput struct {
	Symbol           string
	Bias             Side
	Confidence       decimal.Decimal
	AvailableBalance decimal.Decimal
	BestBidUp        decimal.Decimal
	BestBidDown      decimal.Decimal
	TickSize         decimal.Decimal
	CombinedCap      decimal.Decimal
	MaxSizeMode      MaxSizeMode
	MaxSize          decimal.Decimal
	BetPercent       decimal.Decimal
	ScalingFactor    decimal.Decimal
	MinOrderSize     decimal.Decimal
}

// PricingPolicy turns a signal into a costed, tick-aligned atomic-pair Plan.
type PricingPolicy struct{}

func NewPricingPolicy() *PricingPolicy { return &PricingPolicy{} }

// Price implements §4.4: entry at the bias side's bid, hedge floored under
// the combined cap, size scaled by confidence and bounded by MaxSizeMode.
func (p *PricingPolicy) Price(in PricingInput) (Plan, error) {
	entrySide := in.Bias
	hedgeSide := entrySide.Opposite()

	entryPrice := in.BestBidUp
	if entrySide == SideDown {
		entryPrice = in.BestBidDown
	}
	if entryPrice.IsZero() {
		return Plan{}, ErrNoMarket
	}

	hedgeBid := in.BestBidDown
	if hedgeSide == SideDown {
		hedgeBid = in.BestBidDown
	} else {
		hedgeBid = in.BestBidUp
	}
	if hedgeBid.IsZero() {
		return Plan{}, ErrNoMarket
	}

	cap := in.CombinedCap.Sub(entryPrice)
	hedgePrice := decimal.Min(hedgeBid, cap)
	hedgePrice = floorToTick(hedgePrice, in.TickSize)

	if entryPrice.Add(hedgePrice).GreaterThan(in.CombinedCap) {
		return Plan{}, ErrNotProfitable
	}

	baseBet := in.AvailableBalance.Mul(in.BetPercent)
	scaleFactor := decimal.NewFromInt(1).Add(in.Confidence.Mul(in.ScalingFactor))
	scaledBet := baseBet.Mul(scaleFactor)
	size := scaledBet.Div(entryPrice)

	switch in.MaxSizeMode {
	case MaxSizeMaximize:
		size = decimal.Max(size, in.MaxSize)
		maxAffordable := in.AvailableBalance.Div(entryPrice.Add(hedgePrice))
		size = decimal.Min(size, maxAffordable)
	default: // CAP
		size = decimal.Min(size, in.MaxSize)
	}

	if size.LessThan(in.MinOrderSize) {
		return Plan{}, ErrBelowMin
	}

	return Plan{
		Symbol:      in.Symbol,
		EntrySide:   entrySide,
		EntryPrice:  entryPrice,
		EntrySize:   size,
		HedgePrice:  hedgePrice,
		HedgeSize:   size,
		Confidence:  in.Confidence,
		CombinedCap: in.CombinedCap,
	}, nil
}

// floorToTick rounds d down to the nearest multiple of tick — always toward
// the more profitable side for a BUY order (lower price).
func floorToTick(d, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return d
	}
	steps := d.Div(tick).Floor()
	return steps.Mul(tick)
}
