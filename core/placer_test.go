package core

import (
	"context"
	"testing"
	"time"
)

func testPlan() Plan {
	return Plan{
		Symbol:     "BTC",
		EntrySide:  SideUp,
		EntryPrice: d("0.50"),
		EntrySize:  d("10"),
		HedgePrice: d("0.40"),
		HedgeSize:  d("10"),
		Confidence: d("0.8"),
	}
}

func capturePersist() (func(entry, hedge *TradeRecord) error, *[]*TradeRecord) {
	var recs []*TradeRecord
	return func(entry, hedge *TradeRecord) error {
		recs = append(recs, entry, hedge)
		return nil
	}, &recs
}

func TestAtomicPlacerHappyPath(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.placeRet = []PlacedOrder{
		{ExchangeID: "entry-1", Status: OrderLive},
		{ExchangeID: "hedge-1", Status: OrderLive},
	}
	ex.orderStates["entry-1"] = OrderState{Status: OrderFilled, FilledSize: d("10"), AverageFillPrice: d("0.50")}
	ex.orderStates["hedge-1"] = OrderState{Status: OrderFilled, FilledSize: d("10"), AverageFillPrice: d("0.40")}

	postOnly := NewPostOnlyFailurePolicy(3)
	placer := NewAtomicPlacer(ex, clk, postOnly)
	m := testMarket("BTC", clk.Now())

	persist, recs := capturePersist()

	done := make(chan struct{})
	var placement Placement
	var placeErr error
	go func() {
		placement, placeErr = placer.Place(context.Background(), testPlan(), m, OrderPostOnly, persist)
		close(done)
	}()

	// wait for Place to register its settle-delay Sleep, then unblock it
	waitForClockWaiter(t, clk)
	clk.Advance(defaultSettleDelay)
	<-done

	if placeErr != nil {
		t.Fatalf("Place returned error: %v", placeErr)
	}
	if placement.Outcome != PlacementActive {
		t.Fatalf("Outcome = %v, want ACTIVE", placement.Outcome)
	}
	if placement.Entry.Order.Status != OrderFilled || placement.Hedge.Order.Status != OrderFilled {
		t.Errorf("legs not filled: entry=%v hedge=%v", placement.Entry.Order.Status, placement.Hedge.Order.Status)
	}
	if len(*recs) != 2 {
		t.Errorf("persist should be called with both legs, got %d records", len(*recs))
	}
	if postOnly.Count("BTC") != 0 {
		t.Error("RecordAccepted should reset the post-only counter")
	}
}

func TestAtomicPlacerCrossingRejection(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.placeErr = ErrCrossing

	postOnly := NewPostOnlyFailurePolicy(3)
	placer := NewAtomicPlacer(ex, clk, postOnly)
	m := testMarket("BTC", clk.Now())
	persist, _ := capturePersist()

	placement, err := placer.Place(context.Background(), testPlan(), m, OrderPostOnly, persist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if placement.Outcome != PlacementCrossingRetry {
		t.Errorf("Outcome = %v, want CROSSING_RETRY", placement.Outcome)
	}
	if postOnly.Count("BTC") != 1 {
		t.Errorf("Count = %d, want 1 after a crossing rejection", postOnly.Count("BTC"))
	}
}

func TestClassifyFillPhantomFilledTreatedAsLive(t *testing.T) {
	state := OrderState{Status: OrderFilled, FilledSize: d("0")}
	if got := classifyFill(state); got != OrderLive {
		t.Errorf("classifyFill(phantom) = %v, want LIVE", got)
	}
}

func TestClassifyFillGenuineFillPassesThrough(t *testing.T) {
	state := OrderState{Status: OrderFilled, FilledSize: d("10")}
	if got := classifyFill(state); got != OrderFilled {
		t.Errorf("classifyFill(genuine) = %v, want FILLED", got)
	}
}
