package core

import (
	"context"
	"testing"
	"time"
)

func TestUrgencyFor(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      UrgencyMode
	}{
		{700 * time.Second, UrgencyPatient},
		{601 * time.Second, UrgencyPatient},
		{600 * time.Second, UrgencyBalanced},
		{300 * time.Second, UrgencyBalanced},
		{299 * time.Second, UrgencyAggressive},
		{0, UrgencyAggressive},
	}
	for _, c := range cases {
		if got := urgencyFor(c.remaining); got != c.want {
			t.Errorf("urgencyFor(%v) = %v, want %v", c.remaining, got, c.want)
		}
	}
}

func TestEmergencyConfigStepFor(t *testing.T) {
	cfg := DefaultEmergencyConfig()

	drop, wait := cfg.stepFor(UrgencyPatient)
	if !drop.Equal(cfg.DropPatient) || wait != cfg.WaitLong {
		t.Errorf("PATIENT step = (%v, %v), want (%v, %v)", drop, wait, cfg.DropPatient, cfg.WaitLong)
	}
	drop, wait = cfg.stepFor(UrgencyBalanced)
	if !drop.Equal(cfg.DropBalanced) || wait != cfg.WaitMedium {
		t.Errorf("BALANCED step = (%v, %v), want (%v, %v)", drop, wait, cfg.DropBalanced, cfg.WaitMedium)
	}
	drop, wait = cfg.stepFor(UrgencyAggressive)
	if !drop.Equal(cfg.DropAggressive) || wait != cfg.WaitShort {
		t.Errorf("AGGRESSIVE step = (%v, %v), want (%v, %v)", drop, wait, cfg.DropAggressive, cfg.WaitShort)
	}
}

func TestWeightedValue(t *testing.T) {
	// first fill: prevTotalAfter == newSize, so prevTotal is zero -> just newPrice
	got := weightedValue(d("0"), d("5"), d("5"), d("0.40"))
	if !got.Equal(d("0.40")) {
		t.Errorf("first fill weighted value = %v, want 0.40", got)
	}

	// second fill: 5 @ 0.40 then 5 more @ 0.60 -> average 0.50
	got = weightedValue(d("0.40"), d("10"), d("5"), d("0.60"))
	if !got.Equal(d("0.50")) {
		t.Errorf("second fill weighted value = %v, want 0.50", got)
	}
}

func TestEmergencyLiquidatorSellsAllInOneStep(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ex := newFakeExchange()
	tok := Token{ID: "btc-up", Side: SideUp}
	ex.bids[tok.ID] = d("0.50")
	ex.orderStates["ex-order"] = OrderState{Status: OrderFilled, FilledSize: d("10"), AverageFillPrice: d("0.49")}

	liq := NewEmergencyLiquidator(ex, clk, DefaultEmergencyConfig(), d("1"), d("0.01"))
	windowEnd := clk.Now().Add(1000 * time.Second)

	result := liq.Liquidate(context.Background(), tok, d("10"), d("0.55"), windowEnd)

	if result.Classification != LiquidationSoldAll {
		t.Fatalf("Classification = %v, want SOLD_ALL", result.Classification)
	}
	if !result.SoldSize.Equal(d("10")) {
		t.Errorf("SoldSize = %v, want 10", result.SoldSize)
	}
	if !result.Remaining.IsZero() {
		t.Errorf("Remaining = %v, want 0", result.Remaining)
	}
}

func TestEmergencyLiquidatorHandsOffWinningPositionBelowMin(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ex := newFakeExchange()
	tok := Token{ID: "btc-up", Side: SideUp}
	entryPrice := d("0.40")
	ex.bids[tok.ID] = d("0.90") // currently priced above entry -> winning

	liq := NewEmergencyLiquidator(ex, clk, DefaultEmergencyConfig(), d("5"), d("0.01"))
	windowEnd := clk.Now().Add(1000 * time.Second)

	// position below minOrderSize -> hands off immediately, no order placed.
	result := liq.Liquidate(context.Background(), tok, d("2"), entryPrice, windowEnd)

	if result.Classification != LiquidationHoldThroughResolution {
		t.Errorf("Classification = %v, want HOLD_THROUGH_RESOLUTION", result.Classification)
	}
	if len(ex.placed) != 0 {
		t.Error("no order should be placed for a sub-minimum position")
	}
}

func TestEmergencyLiquidatorOrphansLosingPositionBelowMin(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ex := newFakeExchange()
	tok := Token{ID: "btc-up", Side: SideUp}
	entryPrice := d("0.40")
	ex.bids[tok.ID] = d("0.10") // below entry -> losing

	liq := NewEmergencyLiquidator(ex, clk, DefaultEmergencyConfig(), d("5"), d("0.01"))
	windowEnd := clk.Now().Add(1000 * time.Second)

	result := liq.Liquidate(context.Background(), tok, d("2"), entryPrice, windowEnd)

	if result.Classification != LiquidationOrphaned {
		t.Errorf("Classification = %v, want ORPHANED", result.Classification)
	}
}

func TestEmergencyLiquidatorHandsOffAtSafetyMargin(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ex := newFakeExchange()
	tok := Token{ID: "btc-up", Side: SideUp}
	ex.bids[tok.ID] = d("0.50")

	liq := NewEmergencyLiquidator(ex, clk, DefaultEmergencyConfig(), d("1"), d("0.01"))
	windowEnd := clk.Now().Add(3 * time.Second) // inside the 5s safety margin

	result := liq.Liquidate(context.Background(), tok, d("10"), d("0.40"), windowEnd)

	if result.Classification != LiquidationHoldThroughResolution {
		t.Errorf("Classification = %v, want HOLD_THROUGH_RESOLUTION at safety margin", result.Classification)
	}
	if len(ex.placed) != 0 {
		t.Error("no order should be placed once inside the window-end safety margin")
	}
}
