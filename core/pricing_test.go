package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPricingPolicyPriceHappyPath(t *testing.T) {
	p := NewPricingPolicy()
	in := PricingInput{
		Symbol:           "BTC",
		Bias:             SideUp,
		Confidence:       d("0.8"),
		AvailableBalance: d("1000"),
		BestBidUp:        d("0.55"),
		BestBidDown:      d("0.40"),
		TickSize:         d("0.01"),
		CombinedCap:      d("0.98"),
		MaxSizeMode:      MaxSizeCap,
		MaxSize:          d("500"),
		BetPercent:       d("0.05"),
		ScalingFactor:    d("0.5"),
		MinOrderSize:     d("5"),
	}

	plan, err := p.Price(in)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if plan.EntrySide != SideUp {
		t.Errorf("EntrySide = %v, want UP", plan.EntrySide)
	}
	if !plan.EntryPrice.Equal(d("0.55")) {
		t.Errorf("EntryPrice = %v, want 0.55", plan.EntryPrice)
	}
	// hedge bid 0.40 vs cap-entry (0.98-0.55=0.43) -> min is 0.40, tick-floored stays 0.40
	if !plan.HedgePrice.Equal(d("0.40")) {
		t.Errorf("HedgePrice = %v, want 0.40", plan.HedgePrice)
	}
	if plan.EntryPrice.Add(plan.HedgePrice).GreaterThan(in.CombinedCap) {
		t.Error("combined price exceeds cap (I1 violated)")
	}
	if plan.EntrySize.IsZero() {
		t.Error("EntrySize should not be zero")
	}
	if !plan.EntrySize.Equal(plan.HedgeSize) {
		t.Error("EntrySize and HedgeSize should match (equal notional legs)")
	}
}

func TestPricingPolicyClampsHedgeUnderCap(t *testing.T) {
	p := NewPricingPolicy()
	in := PricingInput{
		Bias:             SideUp,
		Confidence:       d("0.5"),
		AvailableBalance: d("1000"),
		BestBidUp:        d("0.70"),
		BestBidDown:      d("0.60"), // 0.70+0.60 = 1.30 > cap -> hedge clamped to 0.98-0.70
		TickSize:         d("0.01"),
		CombinedCap:      d("0.98"),
		MaxSizeMode:      MaxSizeCap,
		MaxSize:          d("500"),
		BetPercent:       d("0.05"),
		ScalingFactor:    d("0.5"),
		MinOrderSize:     d("5"),
	}
	plan, err := p.Price(in)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if !plan.HedgePrice.Equal(d("0.28")) {
		t.Errorf("HedgePrice = %v, want 0.28 (cap - entry)", plan.HedgePrice)
	}
	if plan.EntryPrice.Add(plan.HedgePrice).GreaterThan(in.CombinedCap) {
		t.Error("combined price exceeds cap (I1 violated)")
	}
}

func TestPricingPolicyRejectsBelowMin(t *testing.T) {
	p := NewPricingPolicy()
	in := PricingInput{
		Bias:             SideUp,
		Confidence:       d("0.1"),
		AvailableBalance: d("1"), // tiny balance -> tiny size
		BestBidUp:        d("0.50"),
		BestBidDown:      d("0.40"),
		TickSize:         d("0.01"),
		CombinedCap:      d("0.98"),
		MaxSizeMode:      MaxSizeCap,
		MaxSize:          d("500"),
		BetPercent:       d("0.05"),
		ScalingFactor:    d("0.5"),
		MinOrderSize:     d("5"),
	}
	_, err := p.Price(in)
	if err != ErrBelowMin {
		t.Errorf("err = %v, want ErrBelowMin", err)
	}
}

func TestPricingPolicyNoMarketWhenBidZero(t *testing.T) {
	p := NewPricingPolicy()
	in := PricingInput{
		Bias:         SideUp,
		Confidence:   d("0.5"),
		BestBidUp:    decimal.Zero,
		BestBidDown:  d("0.40"),
		TickSize:     d("0.01"),
		CombinedCap:  d("0.98"),
		MaxSizeMode:  MaxSizeCap,
		MaxSize:      d("500"),
		BetPercent:   d("0.05"),
		MinOrderSize: d("5"),
	}
	_, err := p.Price(in)
	if err != ErrNoMarket {
		t.Errorf("err = %v, want ErrNoMarket", err)
	}
}

func TestPricingPolicyMaximizeModeUsesAffordableCeiling(t *testing.T) {
	p := NewPricingPolicy()
	in := PricingInput{
		Bias:             SideUp,
		Confidence:       d("0.9"),
		AvailableBalance: d("100"),
		BestBidUp:        d("0.50"),
		BestBidDown:      d("0.40"),
		TickSize:         d("0.01"),
		CombinedCap:      d("0.98"),
		MaxSizeMode:      MaxSizeMaximize,
		MaxSize:          d("10"), // floor, should be exceeded by affordable ceiling
		BetPercent:       d("0.05"),
		ScalingFactor:    d("0.5"),
		MinOrderSize:     d("1"),
	}
	plan, err := p.Price(in)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	maxAffordable := in.AvailableBalance.Div(plan.EntryPrice.Add(plan.HedgePrice))
	if plan.EntrySize.GreaterThan(maxAffordable) {
		t.Errorf("EntrySize %v exceeds affordable ceiling %v", plan.EntrySize, maxAffordable)
	}
}

func TestFloorToTick(t *testing.T) {
	cases := []struct {
		price, tick, want string
	}{
		{"0.437", "0.01", "0.43"},
		{"0.4", "0.01", "0.40"},
		{"0.4399", "0.001", "0.439"},
	}
	for _, c := range cases {
		got := floorToTick(d(c.price), d(c.tick))
		if !got.Equal(d(c.want)) {
			t.Errorf("floorToTick(%s, %s) = %v, want %v", c.price, c.tick, got, c.want)
		}
	}
}
