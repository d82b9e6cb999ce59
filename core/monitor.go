package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FILL MONITOR
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on execution/executor.go's poll-until-terminal shape, generalized
// from a single order to a two-leg pair plus the fills-stream fast path per
// Design Note "Polling loops + sleeps → cooperative suspension".
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	defaultFillTimeout  = 120 * time.Second
	defaultPollInterval = 5 * time.Second
)

// FillMonitor polls (or consumes fills) until both legs reach a terminal
// state or fillTimeout elapses, then cancels whatever remains LIVE (§4.7).
type FillMonitor struct {
	exchange     ExchangeClient
	clock        Clock
	fillTimeout  time.Duration
	pollInterval time.Duration
}

func NewFillMonitor(exchange ExchangeClient, clock Clock, fillTimeout, pollInterval time.Duration) *FillMonitor {
	if fillTimeout <= 0 {
		fillTimeout = defaultFillTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &FillMonitor{exchange: exchange, clock: clock, fillTimeout: fillTimeout, pollInterval: pollInterval}
}

// Wait polls entry and hedge until both are terminal or the deadline passes,
// then synchronously cancels anything still LIVE before returning.
func (f *FillMonitor) Wait(ctx context.Context, entry, hedge Leg, minOrderSize decimal.Decimal) (FillOutcome, Leg, Leg) {
	deadline := f.clock.Now().Add(f.fillTimeout)

	for {
		entry = f.refresh(ctx, entry)
		hedge = f.refresh(ctx, hedge)

		if entry.Order.Status.Terminal() && hedge.Order.Status.Terminal() {
			break
		}
		if !f.clock.Now().Before(deadline) || ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-f.clock.After(f.pollInterval):
		}
		if ctx.Err() != nil {
			break
		}
	}

	if !entry.Order.Status.Terminal() {
		if ok, _ := f.exchange.Cancel(ctx, entry.Order.ExchangeID); ok {
			entry.Order.Status = OrderCanceled
		}
	}
	if !hedge.Order.Status.Terminal() {
		if ok, _ := f.exchange.Cancel(ctx, hedge.Order.ExchangeID); ok {
			hedge.Order.Status = OrderCanceled
		}
	}

	outcome := classify(entry, hedge, minOrderSize)
	log.Info().Str("outcome", string(outcome)).Msg("📊 fill monitor resolved")
	return outcome, entry, hedge
}

func (f *FillMonitor) refresh(ctx context.Context, leg Leg) Leg {
	if leg.Order.Status.Terminal() {
		return leg
	}
	state, err := f.exchange.GetOrder(ctx, leg.Order.ExchangeID)
	if err != nil {
		return leg
	}
	leg.Order.Status = classifyFill(state)
	leg.Order.FilledSize = state.FilledSize
	leg.Order.AverageFillPrice = state.AverageFillPrice
	return leg
}

// classify implements §4.7's BOTH_FILLED/ONE_FILLED/PARTIAL_ONE/NEITHER_FILLED
// decision, keying off minOrderSize rather than the (exchange-visible only)
// intended size, exactly as the spec's numeric examples require.
func classify(entry, hedge Leg, minOrderSize decimal.Decimal) FillOutcome {
	entryMet := entry.Order.FilledSize.GreaterThanOrEqual(minOrderSize)
	hedgeMet := hedge.Order.FilledSize.GreaterThanOrEqual(minOrderSize)

	switch {
	case entryMet && hedgeMet:
		return FillBothFilled
	case entryMet && hedge.Order.FilledSize.IsZero():
		return FillOneFilled
	case hedgeMet && entry.Order.FilledSize.IsZero():
		return FillOneFilled
	case entryMet || hedgeMet:
		return FillPartialOne
	case entry.Order.FilledSize.IsPositive() || hedge.Order.FilledSize.IsPositive():
		return FillPartialOne
	default:
		return FillNeitherFilled
	}
}
