package exec

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
	"github.com/web3guy0/atomichedge/feeds"
)

func TestExchangeAdapterBestBidUsesRouterWhenFresh(t *testing.T) {
	a := newTestAdapter(t)
	router := core.NewRouter()
	router.OnTick(feeds.Tick{Asset: "tok-1", BestBid: decimal.NewFromFloat(0.42), BestAsk: decimal.NewFromFloat(0.44)}, time.Now().UnixNano())
	a.SetRouter(router)

	bid, err := a.BestBid(context.Background(), core.Token{ID: "tok-1"})
	if err != nil {
		t.Fatalf("BestBid failed: %v", err)
	}
	if !bid.Equal(decimal.NewFromFloat(0.42)) {
		t.Errorf("BestBid = %v, want router's pushed 0.42", bid)
	}
}

func TestExchangeAdapterBestAskUsesRouterWhenFresh(t *testing.T) {
	a := newTestAdapter(t)
	router := core.NewRouter()
	router.OnTick(feeds.Tick{Asset: "tok-1", BestBid: decimal.NewFromFloat(0.42), BestAsk: decimal.NewFromFloat(0.44)}, time.Now().UnixNano())
	a.SetRouter(router)

	ask, err := a.BestAsk(context.Background(), core.Token{ID: "tok-1"})
	if err != nil {
		t.Fatalf("BestAsk failed: %v", err)
	}
	if !ask.Equal(decimal.NewFromFloat(0.44)) {
		t.Errorf("BestAsk = %v, want router's pushed 0.44", ask)
	}
}

func TestExchangeAdapterRouterNilUntilSetRouter(t *testing.T) {
	a := newTestAdapter(t)
	if a.router != nil {
		t.Fatal("router should be nil until SetRouter is called")
	}
}
