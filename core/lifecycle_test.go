package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type recordingNotifier struct {
	transitions []LifecycleState
}

func (r *recordingNotifier) OnTransition(symbol string, windowStart time.Time, from, to LifecycleState) {
	r.transitions = append(r.transitions, to)
}
func (r *recordingNotifier) OnLiquidation(symbol string, role Role, result LiquidationResult, pnl decimal.Decimal) {
}

func TestLifecycleStateTerminal(t *testing.T) {
	terminal := []LifecycleState{StateIdleSkipped, StateFailed, StateFinalized}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
	nonTerminal := []LifecycleState{StateIdle, StatePricing, StatePlacing, StateMonitoring, StateHolding, StateOptimizing, StateLiquidating, StateWaitingResolution}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
}

func TestLifecycleRunSkipsOnNeutralSignal(t *testing.T) {
	clk := NewFakeClock(time.Now())
	m := testMarket("BTC", clk.Now())
	notify := &recordingNotifier{}
	deps := LifecycleDeps{
		Exchange: newFakeExchange(),
		Clock:    clk,
		Notify:   notify,
	}
	lc := NewTradeLifecycle(m, deps, d("1000"))

	lc.Run(context.Background(), Signal{Bias: BiasNeutral}, func(decimal.Decimal) bool { return true })

	if lc.State() != StateIdleSkipped {
		t.Errorf("State = %v, want IDLE_SKIPPED for a neutral signal", lc.State())
	}
	if len(notify.transitions) == 0 || notify.transitions[len(notify.transitions)-1] != StateIdleSkipped {
		t.Error("notifier should have observed the IDLE_SKIPPED transition")
	}
}

func TestLifecycleRunSkipsOnZeroConfidence(t *testing.T) {
	clk := NewFakeClock(time.Now())
	m := testMarket("BTC", clk.Now())
	deps := LifecycleDeps{Exchange: newFakeExchange(), Clock: clk}
	lc := NewTradeLifecycle(m, deps, d("1000"))

	lc.Run(context.Background(), Signal{Bias: BiasUp, Confidence: decimal.Zero}, func(decimal.Decimal) bool { return true })

	if lc.State() != StateIdleSkipped {
		t.Errorf("State = %v, want IDLE_SKIPPED for zero confidence", lc.State())
	}
}

func TestLifecycleRunSkipsWhenExposureCapRejects(t *testing.T) {
	clk := NewFakeClock(time.Now())
	m := testMarket("BTC", clk.Now())
	ex := newFakeExchange()
	ex.bids[m.UpToken.ID] = d("0.50")
	ex.bids[m.DownToken.ID] = d("0.40")

	deps := LifecycleDeps{
		Exchange:      ex,
		Clock:         clk,
		Pricing:       NewPricingPolicy(),
		CombinedCap:   d("0.98"),
		MaxSizeMode:   MaxSizeCap,
		MaxSize:       d("500"),
		BetPercent:    d("0.05"),
		ScalingFactor: d("0.5"),
		MinOrderSize:  d("1"),
	}
	lc := NewTradeLifecycle(m, deps, d("1000"))

	lc.Run(context.Background(), Signal{Bias: BiasUp, Confidence: d("0.8")}, func(decimal.Decimal) bool { return false })

	if lc.State() != StateIdleSkipped {
		t.Errorf("State = %v, want IDLE_SKIPPED when exposure check rejects the bet", lc.State())
	}
}

func TestLifecycleRunSkipsWhenPricingFails(t *testing.T) {
	clk := NewFakeClock(time.Now())
	m := testMarket("BTC", clk.Now())
	ex := newFakeExchange() // no bids seeded -> ErrNoMarket

	deps := LifecycleDeps{
		Exchange:      ex,
		Clock:         clk,
		Pricing:       NewPricingPolicy(),
		CombinedCap:   d("0.98"),
		MaxSizeMode:   MaxSizeCap,
		MaxSize:       d("500"),
		BetPercent:    d("0.05"),
		ScalingFactor: d("0.5"),
		MinOrderSize:  d("1"),
	}
	lc := NewTradeLifecycle(m, deps, d("1000"))

	lc.Run(context.Background(), Signal{Bias: BiasUp, Confidence: d("0.8")}, func(decimal.Decimal) bool { return true })

	if lc.State() != StateIdleSkipped {
		t.Errorf("State = %v, want IDLE_SKIPPED when no quotable market", lc.State())
	}
}
