package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE LIFECYCLE — the per-(symbol,window) state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded structurally on strategy/phase_scalper.go's scanLoop/exitLoop dual-
// ticker shape and its entryInProgress per-symbol lock (adapted here into the
// per-lifecycle single-flight guarantee of the concurrency model), and on
// execution/executor.go + execution/reconciler.go for the object composition:
// a lifecycle holds an AtomicPlacer/FillMonitor pair plus a recovery path fed
// by Reconciler.
//
// ═══════════════════════════════════════════════════════════════════════════════

type LifecycleState string

const (
	StateIdle                LifecycleState = "IDLE"
	StatePricing              LifecycleState = "PRICING"
	StatePlacing               LifecycleState = "PLACING"
	StateMonitoring            LifecycleState = "MONITORING"
	StateHolding               LifecycleState = "HOLDING"
	StateOptimizing            LifecycleState = "OPTIMIZING"
	StateLiquidating           LifecycleState = "LIQUIDATING"
	StateLiquidatingOne        LifecycleState = "LIQUIDATING_ONE"
	StateWaitingResolution     LifecycleState = "WAITING_RESOLUTION"
	StateFinalized             LifecycleState = "FINALIZED"
	StateIdleSkipped           LifecycleState = "IDLE_SKIPPED"
	StateFailed                LifecycleState = "FAILED"
)

func (s LifecycleState) Terminal() bool {
	switch s {
	case StateIdleSkipped, StateFailed, StateFinalized:
		return true
	}
	return false
}

// LifecycleDeps bundles every collaborator a lifecycle needs, constructed
// once per process and shared across all (symbol, window) instances.
type LifecycleDeps struct {
	Exchange     ExchangeClient
	Clock        Clock
	Signal       SignalSource
	Resolution   ResolutionSource
	Pricing      *PricingPolicy
	PostOnly     *PostOnlyFailurePolicy
	Optimizer    *PreSettlementOptimizer
	EmergencyCfg EmergencyConfig
	MinOrderSize decimal.Decimal
	CombinedCap  decimal.Decimal
	MaxSizeMode  MaxSizeMode
	MaxSize      decimal.Decimal
	BetPercent   decimal.Decimal
	ScalingFactor decimal.Decimal
	FillTimeout  time.Duration
	PollInterval time.Duration
	MaxRetries   int
	Persist      Persister
	Notify       LifecycleNotifier
}

// Persister is the subset of Store a lifecycle needs to durably record its
// progress. Kept as an interface so tests can inject an in-memory fake.
type Persister interface {
	InsertTradeRecord(ctx context.Context, rec *TradeRecord) (int64, error)
	UpdateOutcome(ctx context.Context, id int64, outcome Outcome, exitPrice, pnl decimal.Decimal, settledAt time.Time) error
	UpdateFill(ctx context.Context, id int64, status OrderStatus, filledSize decimal.Decimal) error
}

// LifecycleNotifier receives best-effort lifecycle transition events for
// operator visibility. The core never blocks on it or branches on its result.
type LifecycleNotifier interface {
	OnTransition(symbol string, windowStart time.Time, from, to LifecycleState)
	OnLiquidation(symbol string, role Role, result LiquidationResult, pnl decimal.Decimal)
}

// TradeLifecycle drives one (symbol, window) through the state machine.
type TradeLifecycle struct {
	mu    sync.Mutex
	deps  LifecycleDeps
	market *Market

	state      LifecycleState
	retries    int
	entry      Leg
	hedge      Leg
	entryRecID int64
	hedgeRecID int64
	availableBalance decimal.Decimal

	pendingPlan   *Plan
	exposureCheck func(bet decimal.Decimal) bool
	losingSide    Side
}

func NewTradeLifecycle(m *Market, deps LifecycleDeps, availableBalance decimal.Decimal) *TradeLifecycle {
	return &TradeLifecycle{
		market:           m,
		deps:             deps,
		state:            StateIdle,
		availableBalance: availableBalance,
	}
}

func (l *TradeLifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *TradeLifecycle) transition(to LifecycleState) {
	from := l.state
	l.state = to
	if l.deps.Notify != nil {
		l.deps.Notify.OnTransition(l.market.Symbol, l.market.WindowStart, from, to)
	}
	log.Info().Str("symbol", l.market.Symbol).Str("from", string(from)).Str("to", string(to)).Msg("🔁 lifecycle transition")
}

// Run drives the lifecycle from IDLE (or a resumed state) to a terminal
// state. exposureOK is consulted in PRICING, each time a plan is priced (I5).
func (l *TradeLifecycle) Run(ctx context.Context, sig Signal, exposureOK func(bet decimal.Decimal) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.exposureCheck = exposureOK
	for !l.state.Terminal() {
		switch l.state {
		case StateIdle:
			l.runIdle(ctx, sig, exposureOK)
		case StatePricing:
			l.runPricing(ctx, sig)
		case StatePlacing:
			l.runPlacing(ctx)
		case StateMonitoring:
			l.runMonitoring(ctx)
		case StateHolding:
			l.runHolding(ctx)
		case StateOptimizing:
			l.runOptimizing(ctx)
		case StateLiquidating, StateLiquidatingOne:
			l.runLiquidating(ctx)
		case StateWaitingResolution:
			l.runWaitingResolution(ctx)
		default:
			return
		}
		if ctx.Err() != nil && !l.state.Terminal() {
			return // cooperative cancellation: stop advancing, resumable later
		}
	}
}

func (l *TradeLifecycle) runIdle(ctx context.Context, sig Signal, exposureOK func(decimal.Decimal) bool) {
	if _, ok := sig.Bias.ToSide(); !ok || sig.Confidence.IsZero() {
		l.transition(StateIdleSkipped)
		return
	}
	l.transition(StatePricing)
}

func (l *TradeLifecycle) runPricing(ctx context.Context, sig Signal) {
	bias, ok := sig.Bias.ToSide()
	if !ok {
		l.transition(StateIdleSkipped)
		return
	}

	bidUp, err1 := l.deps.Exchange.BestBid(ctx, l.market.UpToken)
	bidDown, err2 := l.deps.Exchange.BestBid(ctx, l.market.DownToken)
	if err1 != nil || err2 != nil {
		l.transition(StateIdleSkipped)
		return
	}

	plan, err := l.deps.Pricing.Price(PricingInput{
		Symbol:           l.market.Symbol,
		Bias:             bias,
		Confidence:       sig.Confidence,
		AvailableBalance: l.availableBalance,
		BestBidUp:        bidUp,
		BestBidDown:      bidDown,
		TickSize:         l.market.TickSize,
		CombinedCap:      l.deps.CombinedCap,
		MaxSizeMode:      l.deps.MaxSizeMode,
		MaxSize:          l.deps.MaxSize,
		BetPercent:        l.deps.BetPercent,
		ScalingFactor:     l.deps.ScalingFactor,
		MinOrderSize:      l.deps.MinOrderSize,
	})
	if err != nil {
		log.Info().Err(err).Str("symbol", l.market.Symbol).Msg("🚫 pricing rejected window")
		l.transition(StateIdleSkipped)
		return
	}

	bet := plan.EntryPrice.Add(plan.HedgePrice).Mul(plan.EntrySize)
	if l.exposureCheck != nil && !l.exposureCheck(bet) {
		l.transition(StateIdleSkipped)
		return
	}

	l.pendingPlan = &plan
	l.transition(StatePlacing)
}

func (l *TradeLifecycle) runPlacing(ctx context.Context) {
	if l.pendingPlan == nil {
		l.transition(StateFailed)
		return
	}
	orderType := l.deps.PostOnly.OrderType(l.market.Symbol)
	placer := NewAtomicPlacer(l.deps.Exchange, l.deps.Clock, l.deps.PostOnly)

	placement, err := placer.Place(ctx, *l.pendingPlan, l.market, orderType, func(entryRec, hedgeRec *TradeRecord) error {
		id1, err := l.deps.Persist.InsertTradeRecord(ctx, entryRec)
		if err != nil {
			return err
		}
		id2, err := l.deps.Persist.InsertTradeRecord(ctx, hedgeRec)
		if err != nil {
			return err
		}
		l.entryRecID, l.hedgeRecID = id1, id2
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("symbol", l.market.Symbol).Msg("💥 placement failed")
		l.transition(StateFailed)
		return
	}

	switch placement.Outcome {
	case PlacementCrossingRetry:
		l.retries++
		if l.retries > l.deps.MaxRetries {
			l.transition(StateFailed)
			return
		}
		l.transition(StatePricing)
	case PlacementActive:
		l.entry, l.hedge = placement.Entry, placement.Hedge
		l.transition(StateMonitoring)
	default:
		l.transition(StateFailed)
	}
}

func (l *TradeLifecycle) runMonitoring(ctx context.Context) {
	monitor := NewFillMonitor(l.deps.Exchange, l.deps.Clock, l.deps.FillTimeout, l.deps.PollInterval)
	outcome, entry, hedge := monitor.Wait(ctx, l.entry, l.hedge, l.deps.MinOrderSize)
	l.entry, l.hedge = entry, hedge
	l.recordFillState(ctx)

	switch outcome {
	case FillBothFilled:
		l.transition(StateHolding)
	case FillNeitherFilled:
		l.finalizeOutcome(ctx, l.entryRecID, OutcomeCanceledUnfilled, decimal.Zero, decimal.Zero)
		l.finalizeOutcome(ctx, l.hedgeRecID, OutcomeCanceledUnfilled, decimal.Zero, decimal.Zero)
		l.transition(StateIdleSkipped)
	case FillOneFilled, FillPartialOne:
		l.transition(StateLiquidating)
	default:
		l.transition(StateFailed)
	}
}

func (l *TradeLifecycle) recordFillState(ctx context.Context) {
	if l.deps.Persist == nil {
		return
	}
	_ = l.deps.Persist.UpdateFill(ctx, l.entryRecID, l.entry.Order.Status, l.entry.Order.FilledSize)
	_ = l.deps.Persist.UpdateFill(ctx, l.hedgeRecID, l.hedge.Order.Status, l.hedge.Order.FilledSize)
}

func (l *TradeLifecycle) runHolding(ctx context.Context) {
	now := l.deps.Clock.Now()
	cfg := l.deps.Optimizer
	if cfg == nil {
		l.waitForResolutionBand(ctx)
		l.transition(StateWaitingResolution)
		return
	}
	if l.optimizerCfgInBand(now) {
		l.transition(StateOptimizing)
		return
	}
	if open := l.market.WindowEnd.Add(-cfg.cfg.StartSec); now.Before(open) {
		select {
		case <-ctx.Done():
		case <-l.deps.Clock.After(open.Sub(now)):
		}
		return // stay in HOLDING; the band check runs again on the next Run loop iteration
	}
	l.waitForResolutionBand(ctx)
	l.transition(StateWaitingResolution)
}

func (l *TradeLifecycle) optimizerCfgInBand(now time.Time) bool {
	return l.deps.Optimizer != nil && l.deps.Optimizer.cfg.InBand(now, l.market.WindowEnd)
}

func (l *TradeLifecycle) waitForResolutionBand(ctx context.Context) {
	remaining := l.market.WindowEnd.Sub(l.deps.Clock.Now())
	if remaining > 0 {
		select {
		case <-ctx.Done():
		case <-l.deps.Clock.After(remaining):
		}
	}
}

func (l *TradeLifecycle) runOptimizing(ctx context.Context) {
	decision := l.deps.Optimizer.Evaluate(ctx, l.market.Symbol, l.deps.Clock.Now())
	if !decision.SellLosingLeg {
		if l.deps.Clock.Now().Before(l.market.WindowEnd.Add(-l.deps.Optimizer.cfg.StopSec)) {
			l.deps.Clock.Sleep(l.deps.Optimizer.cfg.IntervalSec)
			return // stay in OPTIMIZING; re-evaluated on the next Run loop iteration
		}
		l.transition(StateWaitingResolution)
		return
	}
	l.losingSide = decision.LosingSide
	l.transition(StateLiquidatingOne)
}

func (l *TradeLifecycle) runLiquidating(ctx context.Context) {
	liquidator := NewEmergencyLiquidator(l.deps.Exchange, l.deps.Clock, l.deps.EmergencyCfg, l.deps.MinOrderSize, l.market.TickSize)

	var leg *Leg
	var recID int64
	if l.state == StateLiquidatingOne {
		leg, recID = l.legFor(l.losingSide)
		_, keeperRecID := l.legFor(l.losingSide.Opposite())
		l.finalizeOutcome(ctx, keeperRecID, OutcomePreSettledKeeper, decimal.Zero, decimal.Zero)
	} else {
		// MONITORING sent us here: liquidate whichever leg actually filled.
		if l.entry.Order.FilledSize.IsPositive() {
			leg, recID = &l.entry, l.entryRecID
		} else {
			leg, recID = &l.hedge, l.hedgeRecID
		}
	}

	result := liquidator.Liquidate(ctx, leg.Order.Token, leg.Order.FilledSize, leg.Order.Price, l.market.WindowEnd)
	pnl := result.AveragePrice.Sub(leg.Order.Price).Mul(result.SoldSize)

	var outcome Outcome
	switch result.Classification {
	case LiquidationSoldAll:
		outcome = OutcomeEmergencySold
	case LiquidationHoldThroughResolution:
		outcome = OutcomeHoldThroughResolv
	default:
		outcome = OutcomeOrphaned
	}
	l.finalizeOutcome(ctx, recID, outcome, result.AveragePrice, pnl)
	if l.deps.Notify != nil {
		l.deps.Notify.OnLiquidation(l.market.Symbol, leg.Role, result.Classification, pnl)
	}

	if l.state == StateLiquidatingOne {
		// Keeper leg was marked PRE_SETTLED_KEEPER above; nothing further to
		// liquidate, it gets harvested at payoff 1.0 in settleResolution.
		l.transition(StateWaitingResolution)
		return
	}
	l.waitForResolutionBand(ctx)
	l.transition(StateWaitingResolution)
}

func (l *TradeLifecycle) legFor(side Side) (*Leg, int64) {
	entrySide := l.entry.Order.Token.Side
	if entrySide == side {
		return &l.entry, l.entryRecID
	}
	return &l.hedge, l.hedgeRecID
}

func (l *TradeLifecycle) runWaitingResolution(ctx context.Context) {
	if l.deps.Resolution == nil {
		l.transition(StateFinalized)
		return
	}
	winner, resolved, err := l.deps.Resolution.Resolution(ctx, l.market)
	if err != nil || !resolved {
		l.deps.Clock.Sleep(5 * time.Second)
		return
	}
	l.settleResolution(ctx, winner)
	l.transition(StateFinalized)
}

func (l *TradeLifecycle) settleResolution(ctx context.Context, winner Side) {
	for _, rec := range []struct {
		id   int64
		leg  *Leg
	}{{l.entryRecID, &l.entry}, {l.hedgeRecID, &l.hedge}} {
		switch rec.leg.Outcome {
		case OutcomeEmergencySold, OutcomeOrphaned, OutcomeHoldThroughResolv:
			// Already finalized by the liquidator; settling here again would
			// overwrite the recorded sale/stranding pnl with a fresh, wrong
			// (0-price) resolution payoff.
			continue
		case OutcomePreSettledKeeper:
			// The optimizer committed to this side when it sold the other
			// leg; it is harvested at payoff 1.0 regardless of the actual
			// winner (§4.9).
			pnl := decimal.NewFromInt(1).Sub(rec.leg.Order.Price).Mul(rec.leg.Order.FilledSize)
			l.finalizeOutcome(ctx, rec.id, OutcomeResolvedWin, decimal.NewFromInt(1), pnl)
			continue
		}
		if rec.leg.Order.FilledSize.IsZero() {
			continue
		}
		outcome := OutcomeResolvedLoss
		payoff := decimal.Zero
		if rec.leg.Order.Token.Side == winner {
			outcome = OutcomeResolvedWin
			payoff = decimal.NewFromInt(1)
		}
		pnl := payoff.Sub(rec.leg.Order.Price).Mul(rec.leg.Order.FilledSize)
		l.finalizeOutcome(ctx, rec.id, outcome, payoff, pnl)
	}
}

func (l *TradeLifecycle) finalizeOutcome(ctx context.Context, recID int64, outcome Outcome, exitPrice, pnl decimal.Decimal) {
	switch recID {
	case l.entryRecID:
		l.entry.Outcome = outcome
	case l.hedgeRecID:
		l.hedge.Outcome = outcome
	}
	if l.deps.Persist == nil || recID == 0 {
		return
	}
	if err := l.deps.Persist.UpdateOutcome(ctx, recID, outcome, exitPrice, pnl, l.deps.Clock.Now()); err != nil {
		log.Error().Err(err).Int64("recordId", recID).Msg("💥 failed to persist final outcome")
	}
}
