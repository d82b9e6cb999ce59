package core

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// fakeExchange is an in-memory ExchangeClient for table-driven core tests.
// Bids/asks/balance are seeded directly; PlaceBatch/Cancel/GetOrder record
// calls and return canned responses set on the struct.
type fakeExchange struct {
	mu sync.Mutex

	bids    map[string]decimal.Decimal
	asks    map[string]decimal.Decimal
	balance decimal.Decimal

	placed   []OrderRequest
	placeErr error
	placeRet []PlacedOrder

	orderStates map[string]OrderState
	cancelRet   bool
	cancelErr   error

	fillsCh chan FillEvent
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		bids:        make(map[string]decimal.Decimal),
		asks:        make(map[string]decimal.Decimal),
		orderStates: make(map[string]OrderState),
		fillsCh:     make(chan FillEvent, 16),
	}
}

func (f *fakeExchange) PlaceBatch(ctx context.Context, orders []OrderRequest) ([]PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, orders...)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	if f.placeRet != nil {
		return f.placeRet, nil
	}
	out := make([]PlacedOrder, len(orders))
	for i := range orders {
		out[i] = PlacedOrder{ExchangeID: "ex-order", Status: OrderLive}
	}
	return out, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, exchangeID string) (OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.orderStates[exchangeID]
	if !ok {
		return OrderState{}, ErrNotFound
	}
	return st, nil
}

func (f *fakeExchange) Cancel(ctx context.Context, exchangeID string) (bool, error) {
	return f.cancelRet, f.cancelErr
}

func (f *fakeExchange) BestBid(ctx context.Context, token Token) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bids[token.ID], nil
}

func (f *fakeExchange) BestAsk(ctx context.Context, token Token) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asks[token.ID], nil
}

func (f *fakeExchange) Balance(ctx context.Context) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeExchange) SubscribeFills(ctx context.Context) (<-chan FillEvent, error) {
	return f.fillsCh, nil
}
