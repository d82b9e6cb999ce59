package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeOpenTradeStore struct {
	open []*TradeRecord

	fillCalls    []struct{ id int64; status OrderStatus; size decimal.Decimal }
	outcomeCalls []struct {
		id        int64
		outcome   Outcome
		exitPrice decimal.Decimal
		pnl       decimal.Decimal
	}
}

func (s *fakeOpenTradeStore) ListOpenTrades(ctx context.Context) ([]*TradeRecord, error) {
	return s.open, nil
}

func (s *fakeOpenTradeStore) UpdateFill(ctx context.Context, id int64, status OrderStatus, filledSize decimal.Decimal) error {
	s.fillCalls = append(s.fillCalls, struct {
		id     int64
		status OrderStatus
		size   decimal.Decimal
	}{id, status, filledSize})
	return nil
}

func (s *fakeOpenTradeStore) UpdateOutcome(ctx context.Context, id int64, outcome Outcome, exitPrice, pnl decimal.Decimal, settledAt time.Time) error {
	s.outcomeCalls = append(s.outcomeCalls, struct {
		id        int64
		outcome   Outcome
		exitPrice decimal.Decimal
		pnl       decimal.Decimal
	}{id, outcome, exitPrice, pnl})
	return nil
}

func TestReconcileMarksCanceledUnfilledWhenOrderNotFound(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	store := &fakeOpenTradeStore{open: []*TradeRecord{{ID: 1, OrderID: "missing", Symbol: "BTC"}}}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	if err := rec.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(store.outcomeCalls) != 1 || store.outcomeCalls[0].outcome != OutcomeCanceledUnfilled {
		t.Fatalf("expected one CANCELED_UNFILLED outcome call, got %+v", store.outcomeCalls)
	}
}

func TestReconcileCancelsExpiredLiveOrder(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.orderStates["e1"] = OrderState{Status: OrderLive, FilledSize: decimal.Zero}
	ex.cancelRet = true

	store := &fakeOpenTradeStore{open: []*TradeRecord{{
		ID: 1, OrderID: "e1", Symbol: "BTC",
		WindowEnd: clk.Now().Add(-time.Minute), // already expired
	}}}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	if err := rec.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(store.outcomeCalls) != 1 || store.outcomeCalls[0].outcome != OutcomeCanceledUnfilled {
		t.Fatalf("expected CANCELED_UNFILLED for an expired live order, got %+v", store.outcomeCalls)
	}
	if len(store.fillCalls) != 0 {
		t.Errorf("expired order should not also receive an UpdateFill call, got %+v", store.fillCalls)
	}
}

func TestReconcileUpdatesFillStateForOngoingOrder(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.orderStates["e1"] = OrderState{Status: OrderPartiallyFilled, FilledSize: d("5")}

	store := &fakeOpenTradeStore{open: []*TradeRecord{{
		ID: 1, OrderID: "e1", Symbol: "BTC",
		WindowEnd: clk.Now().Add(10 * time.Minute), // still active
	}}}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	if err := rec.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(store.fillCalls) != 1 || store.fillCalls[0].status != OrderPartiallyFilled {
		t.Fatalf("expected one UpdateFill call for the ongoing order, got %+v", store.fillCalls)
	}
	if len(store.outcomeCalls) != 0 {
		t.Errorf("an ongoing order should not be marked with a terminal outcome, got %+v", store.outcomeCalls)
	}
}

func TestReconcileSkipsRecordsWithNoOrderID(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	store := &fakeOpenTradeStore{open: []*TradeRecord{{ID: 1, OrderID: "", Symbol: "BTC"}}}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	if err := rec.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(store.fillCalls) != 0 || len(store.outcomeCalls) != 0 {
		t.Error("a record with no OrderID should be left untouched")
	}
}

func TestCheckBalanceInflationFlagsExcessBalance(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.balance = d("100")
	store := &fakeOpenTradeStore{}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	open := []*TradeRecord{{Symbol: "BTC", FilledSize: d("10")}}
	err := rec.checkBalanceInflation(context.Background(), open)
	if err != ErrBalanceInflation {
		t.Errorf("err = %v, want ErrBalanceInflation", err)
	}
}

func TestCheckBalanceInflationAcceptsMatchingBalance(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ex := newFakeExchange()
	ex.balance = d("10")
	store := &fakeOpenTradeStore{}
	rec := NewReconciler(store, ex, clk, NewMarketRegistry())

	open := []*TradeRecord{{Symbol: "BTC", FilledSize: d("10")}}
	if err := rec.checkBalanceInflation(context.Background(), open); err != nil {
		t.Errorf("checkBalanceInflation = %v, want nil when balance matches recorded fills", err)
	}
}
