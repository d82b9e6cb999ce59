package core

import (
	"context"
	"testing"
	"time"
)

func TestPriceResolutionSourceNotYetEndedReturnsUnresolved(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ex := newFakeExchange()
	src := NewPriceResolutionSource(ex, clk)

	m := testMarket("BTC", clk.Now())
	side, ok, err := src.Resolution(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Resolution should be unresolved before WindowEnd")
	}
	if side != "" {
		t.Errorf("side = %v, want empty", side)
	}
}

func TestPriceResolutionSourceHighPriceResolvesUp(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	ex := newFakeExchange()
	src := NewPriceResolutionSource(ex, clk)

	m := testMarket("BTC", start)
	clk.Advance(15 * time.Minute)
	ex.bids[m.UpToken.ID] = d("0.99")

	side, ok, err := src.Resolution(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || side != SideUp {
		t.Errorf("got (%v, %v), want (UP, true)", side, ok)
	}
}

func TestPriceResolutionSourceLowPriceResolvesDown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	ex := newFakeExchange()
	src := NewPriceResolutionSource(ex, clk)

	m := testMarket("BTC", start)
	clk.Advance(15 * time.Minute)
	ex.bids[m.UpToken.ID] = d("0.01")

	side, ok, err := src.Resolution(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || side != SideDown {
		t.Errorf("got (%v, %v), want (DOWN, true)", side, ok)
	}
}

func TestPriceResolutionSourceAmbiguousPriceStaysUnresolved(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	ex := newFakeExchange()
	src := NewPriceResolutionSource(ex, clk)

	m := testMarket("BTC", start)
	clk.Advance(15 * time.Minute)
	ex.bids[m.UpToken.ID] = d("0.5")

	_, ok, err := src.Resolution(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("ambiguous 0.5 price should not resolve either side")
	}
}
