package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EMERGENCY LIQUIDATOR + MINSIZE POLICY
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on strategy/phase_scalper.go's time-remaining-driven phase gates
// (PhaseOpening/DeadZone/Closing/Flat thresholds, forceCloseAllPositions) and
// its take-profit/timeout exit priority list in checkExits — generalized from
// a fixed fade-exit schedule into the three-tier PATIENT/BALANCED/AGGRESSIVE
// urgency ladder below.
//
// ═══════════════════════════════════════════════════════════════════════════════

type UrgencyMode string

const (
	UrgencyPatient    UrgencyMode = "PATIENT"
	UrgencyBalanced   UrgencyMode = "BALANCED"
	UrgencyAggressive UrgencyMode = "AGGRESSIVE"
)

// EmergencyConfig holds the fixed step sizes/waits the Open Question decision
// pinned down (no inferred structure beyond these configured values).
type EmergencyConfig struct {
	WaitShort     time.Duration // AGGRESSIVE wait, default 7s (mid of 5-10s)
	WaitMedium    time.Duration // BALANCED wait, default 8s (mid of 6-10s)
	WaitLong      time.Duration // PATIENT wait, default 15s (mid of 10-20s)
	DropPatient   decimal.Decimal // 0.01
	DropBalanced  decimal.Decimal // 0.035 (mid of 0.02-0.05)
	DropAggressive decimal.Decimal // 0.075 (mid of 0.05-0.10)
	FallbackFloor decimal.Decimal
}

func DefaultEmergencyConfig() EmergencyConfig {
	return EmergencyConfig{
		WaitShort:      7 * time.Second,
		WaitMedium:     8 * time.Second,
		WaitLong:       15 * time.Second,
		DropPatient:    decimal.NewFromFloat(0.01),
		DropBalanced:   decimal.NewFromFloat(0.035),
		DropAggressive: decimal.NewFromFloat(0.075),
		FallbackFloor:  decimal.NewFromFloat(0.01),
	}
}

// EmergencyLiquidator progressively sells a single stranded leg before window
// end, handing off to MinSizePolicy once the remaining size drops below the
// exchange minimum (§4.8).
type EmergencyLiquidator struct {
	exchange     ExchangeClient
	clock        Clock
	cfg          EmergencyConfig
	minOrderSize decimal.Decimal
	tickSize     decimal.Decimal
}

func NewEmergencyLiquidator(exchange ExchangeClient, clock Clock, cfg EmergencyConfig, minOrderSize, tickSize decimal.Decimal) *EmergencyLiquidator {
	return &EmergencyLiquidator{exchange: exchange, clock: clock, cfg: cfg, minOrderSize: minOrderSize, tickSize: tickSize}
}

// Result is the terminal outcome of one Liquidate call.
type Result struct {
	Classification LiquidationResult
	SoldSize       decimal.Decimal
	AveragePrice   decimal.Decimal
	Remaining      decimal.Decimal
}

func urgencyFor(timeRemaining time.Duration) UrgencyMode {
	switch {
	case timeRemaining > 600*time.Second:
		return UrgencyPatient
	case timeRemaining >= 300*time.Second:
		return UrgencyBalanced
	default:
		return UrgencyAggressive
	}
}

func (c EmergencyConfig) stepFor(mode UrgencyMode) (drop decimal.Decimal, wait time.Duration) {
	switch mode {
	case UrgencyPatient:
		return c.DropPatient, c.WaitLong
	case UrgencyBalanced:
		return c.DropBalanced, c.WaitMedium
	default:
		return c.DropAggressive, c.WaitShort
	}
}

// Liquidate sells token progressively until filled, handed off to
// MinSizePolicy, or the window-end safety margin is reached (§4.8, P7).
func (l *EmergencyLiquidator) Liquidate(ctx context.Context, token Token, position, entryPrice decimal.Decimal, windowEnd time.Time) Result {
	remaining := position
	sold := decimal.Zero
	weightedPrice := decimal.Zero

	for {
		now := l.clock.Now()
		timeRemaining := windowEnd.Sub(now)

		if remaining.LessThan(l.minOrderSize) {
			return l.handOffMinSize(ctx, token, remaining, entryPrice, sold, weightedPrice)
		}
		if timeRemaining <= 5*time.Second {
			log.Warn().Str("token", token.ID).Msg("⏱️ liquidator hit window-end safety margin with size remaining")
			return l.handOffMinSize(ctx, token, remaining, entryPrice, sold, weightedPrice)
		}

		mode := urgencyFor(timeRemaining)
		drop, wait := l.cfg.stepFor(mode)

		bestBid, err := l.exchange.BestBid(ctx, token)
		if err != nil {
			bestBid = entryPrice
		}
		price := decimal.Max(l.cfg.FallbackFloor, bestBid.Sub(drop))
		price = floorToTick(price, l.tickSize)

		placed, err := l.exchange.PlaceBatch(ctx, []OrderRequest{{
			Token: token, Side: OrderSell, Price: price, Size: remaining, Type: OrderGTC,
		}})
		if err != nil || len(placed) == 0 {
			l.clock.Sleep(wait)
			continue
		}
		exchangeID := placed[0].ExchangeID

		filled := l.awaitFillOrTimeout(ctx, exchangeID, wait)
		if filled.FilledSize.IsPositive() {
			sold = sold.Add(filled.FilledSize)
			weightedPrice = weightedValue(weightedPrice, sold, filled.FilledSize, filled.AverageFillPrice)
			remaining = remaining.Sub(filled.FilledSize)
		}
		if filled.Status == OrderFilled {
			return Result{Classification: LiquidationSoldAll, SoldSize: sold, AveragePrice: weightedPrice, Remaining: decimal.Zero}
		}
		if remaining.IsPositive() {
			_, _ = l.exchange.Cancel(ctx, exchangeID)
		}
	}
}

func (l *EmergencyLiquidator) awaitFillOrTimeout(ctx context.Context, exchangeID string, wait time.Duration) OrderState {
	deadline := l.clock.Now().Add(wait)
	for {
		state, err := l.exchange.GetOrder(ctx, exchangeID)
		if err == nil && (state.Status == OrderFilled || !l.clock.Now().Before(deadline)) {
			return state
		}
		if !l.clock.Now().Before(deadline) {
			return state
		}
		select {
		case <-ctx.Done():
			return OrderState{Status: OrderLive}
		case <-l.clock.After(500 * time.Millisecond):
		}
	}
}

func weightedValue(prevAvg, prevTotalAfter, newSize, newPrice decimal.Decimal) decimal.Decimal {
	prevTotal := prevTotalAfter.Sub(newSize)
	if prevTotal.IsZero() {
		return newPrice
	}
	num := prevAvg.Mul(prevTotal).Add(newPrice.Mul(newSize))
	return num.Div(prevTotalAfter)
}

// handOffMinSize implements the MinSizePolicy branch of §4.8: winning
// positions below the exchange minimum are held for resolution payoff,
// losing ones are written off rather than spun on indefinitely.
func (l *EmergencyLiquidator) handOffMinSize(ctx context.Context, token Token, remaining, entryPrice, sold, avgPrice decimal.Decimal) Result {
	if remaining.IsZero() {
		return Result{Classification: LiquidationSoldAll, SoldSize: sold, AveragePrice: avgPrice, Remaining: decimal.Zero}
	}
	bestBid, err := l.exchange.BestBid(ctx, token)
	if err != nil {
		bestBid = decimal.Zero
	}
	if bestBid.GreaterThan(entryPrice) {
		return Result{Classification: LiquidationHoldThroughResolution, SoldSize: sold, AveragePrice: avgPrice, Remaining: remaining}
	}
	return Result{Classification: LiquidationOrphaned, SoldSize: sold, AveragePrice: avgPrice, Remaining: remaining}
}
