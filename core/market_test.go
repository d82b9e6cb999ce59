package core

import (
	"testing"
	"time"
)

func testMarket(symbol string, start time.Time) *Market {
	return &Market{
		Symbol:      symbol,
		WindowStart: start,
		WindowEnd:   start.Add(15 * time.Minute),
		UpToken:     Token{ID: symbol + "-up-" + start.String(), Side: SideUp},
		DownToken:   Token{ID: symbol + "-down-" + start.String(), Side: SideDown},
		TickSize:    DefaultTickSize,
	}
}

func TestMarketRegistryUpsertAndCurrent(t *testing.T) {
	reg := NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket("BTC", start)

	reg.Upsert(m)

	got := reg.Current("BTC")
	if got == nil || got.Key() != m.Key() {
		t.Fatalf("Current(BTC) = %v, want %v", got, m)
	}
	if reg.Current("ETH") != nil {
		t.Error("Current(ETH) should be nil, no window tracked")
	}
}

func TestMarketRegistryRolloverMovesOldWindowToHistory(t *testing.T) {
	reg := NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := testMarket("BTC", start)
	second := testMarket("BTC", start.Add(15*time.Minute))

	reg.Upsert(first)
	reg.Upsert(second)

	if reg.Current("BTC").Key() != second.Key() {
		t.Error("Current(BTC) should be the newer window after rollover")
	}
	if reg.ByToken(first.UpToken.ID) == nil {
		t.Error("first window's token should still resolve via history")
	}
}

func TestMarketRegistryByTokenResolvesBothSides(t *testing.T) {
	reg := NewMarketRegistry()
	m := testMarket("BTC", time.Now())
	reg.Upsert(m)

	if got := reg.ByToken(m.UpToken.ID); got == nil || got.Key() != m.Key() {
		t.Error("ByToken(upToken) should resolve to m")
	}
	if got := reg.ByToken(m.DownToken.ID); got == nil || got.Key() != m.Key() {
		t.Error("ByToken(downToken) should resolve to m")
	}
	if got := reg.ByToken("unknown"); got != nil {
		t.Error("ByToken(unknown) should be nil")
	}
}

func TestMarketRegistryExpired(t *testing.T) {
	reg := NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket("BTC", start)
	reg.Upsert(m)

	if reg.Expired("BTC", start.Add(time.Minute)) {
		t.Error("window should not be expired mid-window")
	}
	if !reg.Expired("BTC", m.WindowEnd) {
		t.Error("window should be expired exactly at WindowEnd (inclusive)")
	}
	if !reg.Expired("ETH", start) {
		t.Error("untracked symbol should report expired")
	}
}

func TestMarketActiveSymbols(t *testing.T) {
	reg := NewMarketRegistry()
	reg.Upsert(testMarket("BTC", time.Now()))
	reg.Upsert(testMarket("ETH", time.Now()))

	syms := reg.ActiveSymbols()
	if len(syms) != 2 {
		t.Fatalf("ActiveSymbols() = %v, want 2 symbols", syms)
	}
}

func TestSideOpposite(t *testing.T) {
	if SideUp.Opposite() != SideDown {
		t.Error("SideUp.Opposite() should be SideDown")
	}
	if SideDown.Opposite() != SideUp {
		t.Error("SideDown.Opposite() should be SideUp")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderFilled, OrderCanceled, OrderRejectedCrossing, OrderExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
	nonTerminal := []OrderStatus{OrderPending, OrderLive, OrderPartiallyFilled}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
}
